// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package threat derives threats from vulnerability and WAF evidence.
package threat

import (
	"fmt"
	"strings"

	"github.com/bonial-oss/threatmodel/internal/types"
	"github.com/bonial-oss/threatmodel/internal/utils"
)

// Attack-vector category labels.
const (
	VectorCommandInjection    = "command-injection"
	VectorRemoteCodeExecution = "remote-code-execution"
	VectorSQLInjection        = "sql-injection"
	VectorDatabaseAttack      = "database-attack"
	VectorCrossSiteScripting  = "cross-site-scripting"
	VectorClientSideAttack    = "client-side-attack"
	VectorWAFBypass           = "waf-bypass"
	VectorInjectionAttack     = "injection-attack"
)

const (
	baseScore = 5
	minScore  = 1
	maxScore  = 10

	// WAFBypassName names the threat synthesized from a WAF detection.
	WAFBypassName = "WAF Bypass Potential"
)

// adjustment adds Delta when the inspected field matches one of Values.
type adjustment struct {
	Values []string
	Delta  int
}

// likelihoodByType is evaluated first match wins on the finding type.
var likelihoodByType = []adjustment{
	{Values: []string{"rce", "sqli", "upload"}, Delta: 3},
	{Values: []string{"xss", "csrf"}, Delta: 2},
}

// likelihoodByDifficulty is evaluated first match wins on the difficulty.
var likelihoodByDifficulty = []adjustment{
	{Values: []string{"easy"}, Delta: 2},
	{Values: []string{"hard"}, Delta: -2},
}

// impactByKeyword is evaluated first match wins; Values are substrings of
// the finding's impact text.
var impactByKeyword = []adjustment{
	{Values: []string{"system", "root"}, Delta: 4},
	{Values: []string{"data", "confidential"}, Delta: 3},
	{Values: []string{"user"}, Delta: 2},
}

// vectorsByType maps a finding type to its attack-vector categories.
var vectorsByType = map[string][]string{
	"rce":  {VectorCommandInjection, VectorRemoteCodeExecution},
	"sqli": {VectorSQLInjection, VectorDatabaseAttack},
	"xss":  {VectorCrossSiteScripting, VectorClientSideAttack},
}

// Identify derives threats from vulnerability findings and the optional WAF
// detection. assets is the final inventory used to link affected assets.
// Findings not marked vulnerable produce no threat.
func Identify(findings []types.FindingRecord, waf *types.WAFDetection, assets []types.Asset) []types.Threat {
	threats := make([]types.Threat, 0, len(findings)+1)
	for _, rec := range findings {
		if t, ok := FromFinding(rec, assets); ok {
			threats = append(threats, t)
		}
	}
	if waf != nil && waf.Detected {
		threats = append(threats, WAFBypass(waf, assets))
	}
	return threats
}

// FromFinding builds the threat for one finding. ok is false when the
// finding is not marked vulnerable.
func FromFinding(rec types.FindingRecord, assets []types.Asset) (types.Threat, bool) {
	f := rec.Finding
	if !f.Vulnerable {
		return types.Threat{}, false
	}

	name := "Vulnerability in " + rec.Service
	if rec.Tool != "" {
		name = fmt.Sprintf("%s (%s)", name, rec.Tool)
	}

	affected := make([]string, 0)
	for _, a := range assets {
		if a.HasService(rec.Service) {
			affected = append(affected, a.Name)
		}
	}

	return types.Threat{
		Name:           name,
		Level:          Level(f.Severity),
		Likelihood:     Likelihood(f),
		Impact:         Impact(f),
		Description:    description(f),
		AffectedAssets: utils.Unique(affected),
		AttackVectors:  AttackVectors(f),
	}, true
}

// WAFBypass synthesizes the threat raised by a detected WAF. It affects
// every web server in the inventory.
func WAFBypass(waf *types.WAFDetection, assets []types.Asset) types.Threat {
	affected := make([]string, 0)
	for _, a := range assets {
		if a.Type == types.AssetWebServer {
			affected = append(affected, a.Name)
		}
	}

	desc := "a web application firewall was detected and may be bypassed"
	if waf != nil && len(waf.WAFTypes) > 0 {
		desc = fmt.Sprintf("%s (%s)", desc, strings.Join(waf.WAFTypes, ", "))
	}

	return types.Threat{
		Name:           WAFBypassName,
		Level:          types.ThreatHigh,
		Likelihood:     7,
		Impact:         8,
		Description:    desc,
		AffectedAssets: utils.Unique(affected),
		AttackVectors:  []string{VectorWAFBypass, VectorInjectionAttack},
	}
}

// Level maps a severity string to a threat level. Absent or unrecognized
// severities are medium.
func Level(severity string) types.ThreatLevel {
	if level, ok := types.ParseThreatLevel(severity); ok {
		return level
	}
	return types.ThreatMedium
}

// Likelihood estimates the probability of exploitation on a 1–10 scale.
// Type and difficulty adjustments are independent and additive.
func Likelihood(f types.VulnFinding) int {
	score := baseScore
	score += firstDelta(likelihoodByType, func(v string) bool { return equalFold(f.Type, v) })
	score += firstDelta(likelihoodByDifficulty, func(v string) bool { return equalFold(f.Difficulty, v) })
	return clamp(score)
}

// Impact estimates the damage if exploited on a 1–10 scale.
func Impact(f types.VulnFinding) int {
	text := strings.ToLower(f.Impact)
	score := baseScore
	if text != "" {
		score += firstDelta(impactByKeyword, func(v string) bool { return strings.Contains(text, v) })
	}
	return clamp(score)
}

// AttackVectors returns the deduplicated vector categories of a finding:
// those implied by its type plus its method, if any.
func AttackVectors(f types.VulnFinding) []string {
	vectors := append([]string{}, vectorsByType[strings.ToLower(strings.TrimSpace(f.Type))]...)
	if method := strings.TrimSpace(f.Method); method != "" {
		vectors = append(vectors, method)
	}
	return utils.Unique(vectors)
}

func description(f types.VulnFinding) string {
	desc := f.Details
	if desc == "" {
		desc = f.Description
	}
	if desc == "" {
		desc = "unknown vulnerability"
	}
	if len(f.InjectionPoints) > 0 {
		desc = fmt.Sprintf("%s (parameters: %s)", desc, strings.Join(f.InjectionPoints, ", "))
	}
	return desc
}

// firstDelta returns the delta of the first adjustment with a value
// accepted by match, or 0.
func firstDelta(table []adjustment, match func(string) bool) int {
	for _, adj := range table {
		for _, v := range adj.Values {
			if match(v) {
				return adj.Delta
			}
		}
	}
	return 0
}

func equalFold(field, value string) bool {
	return strings.EqualFold(strings.TrimSpace(field), value)
}

func clamp(score int) int {
	return max(minScore, min(maxScore, score))
}
