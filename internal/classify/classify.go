// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"fmt"
	"strings"

	"github.com/bonial-oss/threatmodel/internal/types"
	"github.com/bonial-oss/threatmodel/internal/utils"
)

// Rule turns a port record into an asset when Match reports true.
type Rule struct {
	// Kind is the human label used in asset names and descriptions.
	Kind    string
	Type    types.AssetType
	Value   int
	Exposed bool
	// HostScoped names the asset by host only, so every matching port on
	// the host yields the same asset name.
	HostScoped bool
	Match      func(types.PortRecord) bool
}

// DefaultRules is the classification table, evaluated first match wins.
var DefaultRules = []Rule{
	{
		Kind:    "Web Server",
		Type:    types.AssetWebServer,
		Value:   8,
		Exposed: true,
		Match:   ServiceIn("http", "https"),
	},
	{
		Kind:    "Database Server",
		Type:    types.AssetDatabase,
		Value:   9,
		Exposed: true,
		Match:   ServiceIn("mysql", "mssql", "postgresql", "mongodb"),
	},
	{
		Kind:       "Domain Controller",
		Type:       types.AssetDomainController,
		Value:      10,
		Exposed:    true,
		HostScoped: true,
		Match:      AnyOf(PortIs(389), ServiceIn("ldap", "kerberos")),
	},
}

// ServiceIn matches records whose service name is one of names.
func ServiceIn(names ...string) func(types.PortRecord) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(r types.PortRecord) bool {
		return set[serviceName(r)]
	}
}

// PortIs matches records on the given port number.
func PortIs(port int) func(types.PortRecord) bool {
	return func(r types.PortRecord) bool {
		return r.Port == port
	}
}

// AnyOf matches when any of the predicates matches.
func AnyOf(preds ...func(types.PortRecord) bool) func(types.PortRecord) bool {
	return func(r types.PortRecord) bool {
		for _, p := range preds {
			if p(r) {
				return true
			}
		}
		return false
	}
}

// Options controls record filtering and duplicate handling.
type Options struct {
	// OpenOnly skips records whose state is reported and is not "open".
	OpenOnly bool
	// Dedupe keeps one asset per name. The services of a repeated record
	// are merged into the asset produced first.
	Dedupe bool
}

// Classifier derives the asset inventory from port records.
type Classifier struct {
	rules []Rule
	opts  Options
}

// Result holds the classified assets in discovery order.
type Result struct {
	Assets []types.Asset
	// Duplicates holds a *types.DuplicateAssetError per repeated name.
	Duplicates []error
	// Unmatched counts records that matched no rule.
	Unmatched int
}

// New creates a Classifier. A nil rule table selects DefaultRules.
func New(rules []Rule, opts Options) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules, opts: opts}
}

// Match returns the first rule matching r.
func (c *Classifier) Match(r types.PortRecord) (Rule, bool) {
	for _, rule := range c.rules {
		if rule.Match(r) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Classify applies the rule table to every record. Records matching no rule
// produce no asset.
func (c *Classifier) Classify(records []types.PortRecord) Result {
	res := Result{Assets: make([]types.Asset, 0, len(records))}
	seen := make(map[string]int)

	for _, r := range records {
		if c.opts.OpenOnly && r.Service.State != "" && !strings.EqualFold(r.Service.State, "open") {
			continue
		}
		rule, ok := c.Match(r)
		if !ok {
			res.Unmatched++
			continue
		}
		asset := rule.Asset(r)
		if i, ok := seen[asset.Name]; ok {
			res.Duplicates = append(res.Duplicates, &types.DuplicateAssetError{
				Name:   asset.Name,
				Merged: c.opts.Dedupe,
			})
			if c.opts.Dedupe {
				kept := &res.Assets[i]
				kept.Services = utils.Unique(append(kept.Services, asset.Services...))
				continue
			}
		} else {
			seen[asset.Name] = len(res.Assets)
		}
		res.Assets = append(res.Assets, asset)
	}
	return res
}

// Asset builds the asset for a record this rule matched.
func (rule Rule) Asset(r types.PortRecord) types.Asset {
	name := fmt.Sprintf("%s (%s:%d)", rule.Kind, r.Host, r.Port)
	if rule.HostScoped {
		name = fmt.Sprintf("%s (%s)", rule.Kind, r.Host)
	}

	services := []string{}
	if svc := serviceName(r); svc != "" {
		services = append(services, svc)
	}

	return types.Asset{
		Name:        name,
		Type:        rule.Type,
		Value:       rule.Value,
		Exposed:     rule.Exposed,
		Services:    services,
		Description: describe(rule.Kind, r),
	}
}

// describe records which evidence produced the asset.
func describe(kind string, r types.PortRecord) string {
	software := strings.TrimSpace(r.Service.Product + " " + r.Service.Version)
	if software == "" {
		return fmt.Sprintf("%s (%s/%d)", kind, r.Protocol, r.Port)
	}
	return fmt.Sprintf("%s running %s (%s/%d)", kind, software, r.Protocol, r.Port)
}

func serviceName(r types.PortRecord) string {
	return strings.ToLower(strings.TrimSpace(r.Service.Service))
}
