// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package store accumulates the result of one analysis run and persists it
// as a model document.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/bonial-oss/threatmodel/internal/output"
	"github.com/bonial-oss/threatmodel/internal/types"
)

// Store is the accumulating result object of one run. It is owned by a
// single caller and is not safe for concurrent use.
type Store struct {
	runID       string
	generatedAt time.Time

	assets  []types.Asset
	threats []types.Threat
	scores  map[string]float64
	surface types.AttackSurfaceReport
	overall types.Overall
	issues  []types.Issue
}

func New() *Store {
	return &Store{
		runID:       uuid.NewString(),
		generatedAt: time.Now().UTC(),
		assets:      []types.Asset{},
		threats:     []types.Threat{},
		scores:      map[string]float64{},
		overall:     types.Overall{Level: types.RiskLow},
	}
}

func (s *Store) RunID() string { return s.runID }

// AddAssets appends to the asset inventory.
func (s *Store) AddAssets(assets ...types.Asset) {
	s.assets = append(s.assets, assets...)
}

// AddThreats appends to the threat list.
func (s *Store) AddThreats(threats ...types.Threat) {
	s.threats = append(s.threats, threats...)
}

// Assets returns a copy of the asset inventory.
func (s *Store) Assets() []types.Asset {
	return copyAssets(s.assets)
}

// Threats returns a copy of the threat list.
func (s *Store) Threats() []types.Threat {
	return copyThreats(s.threats)
}

// SetScores replaces the risk scores of the run.
func (s *Store) SetScores(scores map[string]float64) {
	s.scores = maps.Clone(scores)
	if s.scores == nil {
		s.scores = map[string]float64{}
	}
}

// SetAttackSurface replaces the attack-surface report of the run.
func (s *Store) SetAttackSurface(r types.AttackSurfaceReport) {
	s.surface = copySurface(r)
}

func (s *Store) SetOverall(o types.Overall) {
	s.overall = o
}

// Note records a problem noticed while building the run.
func (s *Store) Note(errs ...error) {
	for _, err := range errs {
		if err != nil {
			s.issues = append(s.issues, types.NewIssue(err))
		}
	}
}

// Model returns a snapshot of the run. Mutating the snapshot does not
// affect the store.
func (s *Store) Model() *types.Model {
	m := &types.Model{
		RunID:         s.runID,
		GeneratedAt:   s.generatedAt,
		Assets:        copyAssets(s.assets),
		Threats:       copyThreats(s.threats),
		RiskScores:    maps.Clone(s.scores),
		AttackSurface: copySurface(s.surface),
		Overall:       s.overall,
	}
	if len(s.issues) > 0 {
		m.Issues = append([]types.Issue(nil), s.issues...)
	}
	return m
}

func copyAssets(in []types.Asset) []types.Asset {
	out := make([]types.Asset, len(in))
	for i, a := range in {
		a.Services = cloneStrings(a.Services)
		out[i] = a
	}
	return out
}

func copyThreats(in []types.Threat) []types.Threat {
	out := make([]types.Threat, len(in))
	for i, t := range in {
		t.AffectedAssets = cloneStrings(t.AffectedAssets)
		t.AttackVectors = cloneStrings(t.AttackVectors)
		out[i] = t
	}
	return out
}

func copySurface(r types.AttackSurfaceReport) types.AttackSurfaceReport {
	return types.AttackSurfaceReport{
		ExposedServices:       cloneStrings(r.ExposedServices),
		CriticalAssets:        append([]types.CriticalAsset{}, r.CriticalAssets...),
		HighRiskThreats:       append([]types.HighRiskThreat{}, r.HighRiskThreats...),
		AttackVectors:         cloneStrings(r.AttackVectors),
		MitigationSuggestions: cloneStrings(r.MitigationSuggestions),
	}
}

func cloneStrings(s []string) []string {
	return append([]string{}, s...)
}

// Export writes m to path, as YAML when the extension is .yaml or .yml and
// as indented JSON otherwise. The file is replaced atomically.
func Export(path string, m *types.Model) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, path, m); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting export permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

func encode(w io.Writer, path string, m *types.Model) error {
	if isYAML(path) {
		return output.WriteYAML(w, m)
	}
	return output.WriteJSON(w, m)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Load reads a model document written by Export and validates it.
func Load(path string) (*types.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	return Decode(data)
}

// Decode parses a JSON or YAML model document and validates it.
func Decode(data []byte) (*types.Model, error) {
	var m types.Model
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, fmt.Errorf("decoding model: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

var validate = validator.New()

// Validate checks the structural constraints of a model document.
func Validate(m *types.Model) error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: invalid model: %w", types.ErrMalformedInput, err)
	}
	return nil
}
