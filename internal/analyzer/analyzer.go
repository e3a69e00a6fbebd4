// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package analyzer

import (
	"fmt"
	"log/slog"

	"github.com/bonial-oss/threatmodel/internal/classify"
	"github.com/bonial-oss/threatmodel/internal/risk"
	"github.com/bonial-oss/threatmodel/internal/store"
	"github.com/bonial-oss/threatmodel/internal/surface"
	"github.com/bonial-oss/threatmodel/internal/threat"
	"github.com/bonial-oss/threatmodel/internal/types"
)

// Analyzer turns scan results into a threat model.
type Analyzer struct {
	logger *slog.Logger
	rules  []classify.Rule
}

// Config holds classification and policy options for an analysis run.
type Config struct {
	DedupeAssets   bool
	OpenPortsOnly  bool
	FailOnScore    float64
	FailOnDangling bool
}

// Result holds the model of a run, the problems noticed while building it
// and the policy violation status.
type Result struct {
	Model *types.Model
	// Malformed holds a *types.RecordError per skipped input record.
	Malformed []error
	// Dangling holds a *types.DanglingReferenceError per unknown asset name.
	Dangling []error
	// Duplicates holds a *types.DuplicateAssetError per repeated asset name.
	Duplicates      []error
	PolicyViolation bool
	Violations      []string
}

// New creates an Analyzer using the default classification rules. A nil
// logger selects slog.Default().
func New(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger, rules: classify.DefaultRules}
}

// WithRules returns a copy of the analyzer classifying with rules.
func (a *Analyzer) WithRules(rules []classify.Rule) *Analyzer {
	cp := *a
	cp.rules = rules
	return &cp
}

// Analyze runs the whole pipeline: classify assets, identify threats, then
// score and summarize once both are final. Malformed records are skipped
// and reported, never fatal.
func (a *Analyzer) Analyze(scan *types.ScanResults, cfg Config) (*Result, error) {
	if scan == nil {
		return nil, fmt.Errorf("%w: no scan results", types.ErrMalformedInput)
	}
	res := &Result{}

	// Step 1: assets from port records.
	records, errs := scan.PortScan.Records()
	res.Malformed = append(res.Malformed, errs...)

	classifier := classify.New(a.rules, classify.Options{
		OpenOnly: cfg.OpenPortsOnly,
		Dedupe:   cfg.DedupeAssets,
	})
	classified := classifier.Classify(records)
	res.Duplicates = classified.Duplicates
	a.logger.Debug("classified port records",
		"records", len(records), "assets", len(classified.Assets), "unmatched", classified.Unmatched)

	// Step 2: threats from findings and WAF detection, linked against the
	// final inventory.
	findings, errs := scan.VulnScan.Records()
	res.Malformed = append(res.Malformed, errs...)

	waf, err := scan.WAFDetection()
	if err != nil {
		res.Malformed = append(res.Malformed, err)
	}

	threats := threat.Identify(findings, waf, classified.Assets)
	a.logger.Debug("identified threats", "findings", len(findings), "threats", len(threats))

	a.assemble(res, classified.Assets, threats, cfg)
	return res, nil
}

// Assemble scores and summarizes an already built inventory and threat
// list. Threats may name assets missing from the inventory; those
// references are reported as dangling and left out of scoring.
func (a *Analyzer) Assemble(assets []types.Asset, threats []types.Threat, cfg Config) *Result {
	res := &Result{}
	a.assemble(res, assets, threats, cfg)
	return res
}

func (a *Analyzer) assemble(res *Result, assets []types.Asset, threats []types.Threat, cfg Config) {
	st := store.New()
	st.AddAssets(assets...)
	st.AddThreats(threats...)

	// Step 3: scores. Assets and threats are final from here on.
	idx, dangling := risk.NewIndex(assets, threats)
	res.Dangling = append(res.Dangling, dangling...)
	scores := idx.Scores(assets, threats)
	st.SetScores(scores)
	st.SetOverall(risk.Overall(scores))

	// Step 4: attack surface.
	st.SetAttackSurface(surface.Summarize(assets, threats))

	for _, errs := range [][]error{res.Malformed, res.Duplicates, res.Dangling} {
		for _, err := range errs {
			a.logger.Warn("data contract problem", "error", err)
		}
		st.Note(errs...)
	}

	res.Model = st.Model()
	res.Violations = Violations(res.Model, res.Dangling, cfg)
	res.PolicyViolation = len(res.Violations) > 0

	a.logger.Debug("assembled threat model",
		"run_id", res.Model.RunID, "assets", len(res.Model.Assets), "threats", len(res.Model.Threats),
		"overall", res.Model.Overall.Level)
}

// Violations checks a model against the policy in cfg and describes each
// violation found.
func Violations(m *types.Model, dangling []error, cfg Config) []string {
	var out []string
	if cfg.FailOnScore > 0 {
		seen := make(map[string]bool, len(m.Assets))
		for _, asset := range m.Assets {
			if seen[asset.Name] {
				continue
			}
			seen[asset.Name] = true
			if s, ok := m.RiskScores[asset.Name]; ok && s >= cfg.FailOnScore {
				out = append(out, fmt.Sprintf("asset %q scores %.1f (threshold %.1f)", asset.Name, s, cfg.FailOnScore))
			}
		}
	}
	if cfg.FailOnDangling && len(dangling) > 0 {
		out = append(out, fmt.Sprintf("%d dangling asset reference(s)", len(dangling)))
	}
	return out
}
