// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package risk

import (
	"math"

	"github.com/bonial-oss/threatmodel/internal/types"
)

const (
	// MaxScore caps every asset score.
	MaxScore = 100.0
	// ExposureMultiplier is applied to assets reachable from outside.
	ExposureMultiplier = 1.5

	// HighThreshold and MediumThreshold are the lowest scores of the high
	// and medium risk levels.
	HighThreshold   = 75.0
	MediumThreshold = 50.0
)

// Score computes the risk score (0.0–100.0) of one asset from its intrinsic
// value, the threats linked to it, and its exposure.
func Score(asset types.Asset, linked []types.Threat) float64 {
	base := float64(asset.Value) * 10
	s := (base + threatScore(linked)) * exposure(asset)
	return math.Max(0, math.Min(MaxScore, s))
}

func threatScore(linked []types.Threat) float64 {
	var sum float64
	for _, t := range linked {
		sum += float64(t.Likelihood * t.Impact)
	}
	return sum
}

func exposure(asset types.Asset) float64 {
	if asset.Exposed {
		return ExposureMultiplier
	}
	return 1.0
}

// Scores computes one score per asset name.
//
// Precondition: assets and threats are final for the run. Calling Scores
// before every threat is identified yields partial scores. The returned
// map is fresh on every call, so recomputing replaces prior scores. The
// returned errors are *types.DanglingReferenceError values for threats that
// name unknown assets.
func Scores(assets []types.Asset, threats []types.Threat) (map[string]float64, []error) {
	idx, dangling := NewIndex(assets, threats)
	return idx.Scores(assets, threats), dangling
}

// Scores computes one score per asset name using the relation in ix.
func (ix *Index) Scores(assets []types.Asset, threats []types.Threat) map[string]float64 {
	scores := make(map[string]float64, len(assets))
	for _, a := range assets {
		scores[a.Name] = Score(a, ix.Linked(a.Name, threats))
	}
	return scores
}

// Overall summarizes a run: the mean asset score and its level
// (high >= 75, medium >= 50, low otherwise). No scores yields a low level.
func Overall(scores map[string]float64) types.Overall {
	if len(scores) == 0 {
		return types.Overall{AverageScore: 0, Level: types.RiskLow}
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := sum / float64(len(scores))
	return types.Overall{AverageScore: avg, Level: LevelFor(avg)}
}

// LevelFor maps a score to an overall risk level.
func LevelFor(score float64) types.RiskLevel {
	switch {
	case score >= HighThreshold:
		return types.RiskHigh
	case score >= MediumThreshold:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}
