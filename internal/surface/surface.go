// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package surface summarizes the attack surface of an analysis run and
// derives mitigation suggestions from it.
package surface

import (
	"sort"
	"strings"

	"github.com/bonial-oss/threatmodel/internal/types"
	"github.com/bonial-oss/threatmodel/internal/utils"
)

const criticalValue = 8

// Mitigation suggestions.
const (
	SuggestWAF               = "deploy a web application firewall"
	SuggestHTTPS             = "enforce HTTPS with secure headers"
	SuggestValidateAndEncode = "apply input validation and output encoding"
	SuggestRestrictDBAccess  = "restrict database network access"
	SuggestStrongAuth        = "enforce strong authentication"
	SuggestBackups           = "schedule regular backups"
	SuggestParameterized     = "use parameterized queries"
	SuggestValidateInput     = "apply input validation"
	SuggestLeastPrivilege    = "apply least-privilege access"
	SuggestCSP               = "apply a content-security-policy"
	SuggestSecureCookies     = "use secure cookie flags"
)

// Rule adds Suggestions for an exposed service or an attack vector.
// Exactly one of Service and Vector is set.
type Rule struct {
	Service     func(service string) bool
	Vector      func(vector string) bool
	Suggestions []string
}

// DefaultRules is the mitigation table. Each exposed service and each
// attack vector picks the first rule of its kind that matches.
var DefaultRules = []Rule{
	{
		Service:     oneOf("http", "https"),
		Suggestions: []string{SuggestWAF, SuggestHTTPS, SuggestValidateAndEncode},
	},
	{
		Service:     oneOf("mysql", "mssql", "postgresql"),
		Suggestions: []string{SuggestRestrictDBAccess, SuggestStrongAuth, SuggestBackups},
	},
	{
		Vector:      containsAny("injection"),
		Suggestions: []string{SuggestParameterized, SuggestValidateInput, SuggestLeastPrivilege},
	},
	{
		Vector:      containsAny("cross-site", "xss"),
		Suggestions: []string{SuggestCSP, SuggestSecureCookies, SuggestValidateAndEncode},
	},
}

func oneOf(values ...string) func(string) bool {
	return func(s string) bool {
		s = strings.ToLower(s)
		for _, v := range values {
			if s == v {
				return true
			}
		}
		return false
	}
}

func containsAny(themes ...string) func(string) bool {
	return func(s string) bool {
		s = strings.ToLower(s)
		for _, th := range themes {
			if strings.Contains(s, th) {
				return true
			}
		}
		return false
	}
}

// Summarize builds the attack-surface report with DefaultRules. It is a pure
// function of its inputs.
func Summarize(assets []types.Asset, threats []types.Threat) types.AttackSurfaceReport {
	return SummarizeWith(DefaultRules, assets, threats)
}

// SummarizeWith builds the attack-surface report with the given mitigation
// rules.
func SummarizeWith(rules []Rule, assets []types.Asset, threats []types.Threat) types.AttackSurfaceReport {
	report := types.AttackSurfaceReport{
		ExposedServices: []string{},
		CriticalAssets:  []types.CriticalAsset{},
		HighRiskThreats: []types.HighRiskThreat{},
	}

	for _, a := range assets {
		if a.Exposed {
			report.ExposedServices = append(report.ExposedServices, a.Services...)
		}
		if a.Value >= criticalValue {
			report.CriticalAssets = append(report.CriticalAssets, types.CriticalAsset{
				Name:        a.Name,
				Type:        a.Type,
				Description: a.Description,
			})
		}
	}

	var vectors []string
	for _, t := range threats {
		if !t.Level.HighRisk() {
			continue
		}
		report.HighRiskThreats = append(report.HighRiskThreats, types.HighRiskThreat{
			Name:        t.Name,
			Level:       t.Level,
			Description: t.Description,
		})
		vectors = append(vectors, t.AttackVectors...)
	}
	report.AttackVectors = utils.Unique(vectors)
	report.MitigationSuggestions = Mitigations(rules, report.ExposedServices, report.AttackVectors)
	return report
}

// Mitigations applies the rule table to exposed services and attack vectors
// and returns the deduplicated, sorted suggestions.
func Mitigations(rules []Rule, services, vectors []string) []string {
	var out []string
	for _, s := range services {
		for _, r := range rules {
			if r.Service != nil && r.Service(s) {
				out = append(out, r.Suggestions...)
				break
			}
		}
	}
	for _, v := range vectors {
		for _, r := range rules {
			if r.Vector != nil && r.Vector(v) {
				out = append(out, r.Suggestions...)
				break
			}
		}
	}
	out = utils.Unique(out)
	sort.Strings(out)
	return out
}
