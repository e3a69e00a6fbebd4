// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"io"

	"github.com/gosimple/slug"

	"github.com/bonial-oss/threatmodel/internal/types"
)

const (
	toolName           = "threatmodel"
	toolInformationURI = "https://github.com/bonial-oss/threatmodel"
)

// BuildSARIF converts a model into a SARIF 2.1.0 report with one rule per
// distinct threat name and one result per threat. Rule ids are slugs of the
// names; names that slug alike get a numeric suffix.
func BuildSARIF(m *types.Model, version string) *types.SARIFReport {
	rules := []types.SARIFRule{}
	ruleIndex := map[string]int{}
	usedIDs := map[string]bool{}
	results := make([]types.SARIFResult, 0, len(m.Threats))

	for _, t := range m.Threats {
		idx, ok := ruleIndex[t.Name]
		if !ok {
			id := uniqueID(ruleID(t.Name), usedIDs)
			usedIDs[id] = true
			idx = len(rules)
			ruleIndex[t.Name] = idx
			rules = append(rules, types.SARIFRule{
				ID:               id,
				Name:             t.Name,
				ShortDescription: types.SARIFMessage{Text: t.Name},
				Properties: map[string]any{
					"level": string(t.Level),
				},
			})
		}

		result := types.SARIFResult{
			RuleID:    rules[idx].ID,
			RuleIndex: idx,
			Level:     sarifLevel(t.Level),
			Message:   types.SARIFMessage{Text: t.Description},
			Properties: map[string]any{
				"likelihood":      t.Likelihood,
				"impact":          t.Impact,
				"affected_assets": nonNil(t.AffectedAssets),
				"attack_vectors":  nonNil(t.AttackVectors),
				"risk":            threatRisk(t, m.RiskScores),
			},
		}
		if len(t.AffectedAssets) > 0 {
			loc := types.SARIFLocation{}
			for _, a := range t.AffectedAssets {
				loc.LogicalLocations = append(loc.LogicalLocations, types.SARIFLogicalLocation{Name: a, Kind: "asset"})
			}
			result.Locations = []types.SARIFLocation{loc}
		}
		results = append(results, result)
	}

	return &types.SARIFReport{
		Schema:  types.SARIFSchema,
		Version: "2.1.0",
		Runs: []types.SARIFRun{{
			Tool: types.SARIFTool{Driver: types.SARIFDriver{
				Name:           toolName,
				Version:        version,
				InformationURI: toolInformationURI,
				Rules:          rules,
			}},
			Results: results,
		}},
	}
}

// WriteSARIF writes the model as an indented SARIF report.
func WriteSARIF(w io.Writer, m *types.Model, version string) error {
	if err := WriteJSON(w, BuildSARIF(m, version)); err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	return nil
}

func ruleID(name string) string {
	if id := slug.Make(name); id != "" {
		return id
	}
	return "threat"
}

func uniqueID(id string, used map[string]bool) string {
	if !used[id] {
		return id
	}
	for n := 2; ; n++ {
		if c := fmt.Sprintf("%s-%d", id, n); !used[c] {
			return c
		}
	}
}

// sarifLevel maps a threat level to a SARIF result level.
func sarifLevel(l types.ThreatLevel) string {
	switch l {
	case types.ThreatCritical, types.ThreatHigh:
		return "error"
	case types.ThreatMedium:
		return "warning"
	default:
		return "note"
	}
}

// threatRisk is the highest score among the assets a threat affects.
func threatRisk(t types.Threat, scores map[string]float64) float64 {
	var highest float64
	for _, a := range t.AffectedAssets {
		highest = max(highest, scores[a])
	}
	return highest
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
