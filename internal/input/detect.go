// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bonial-oss/threatmodel/internal/store"
	"github.com/bonial-oss/threatmodel/internal/types"
)

type Format int

const (
	FormatScan Format = iota
	FormatModel
)

func (f Format) String() string {
	if f == FormatModel {
		return "model"
	}
	return "scan"
}

type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingYAML
)

type ParseResult struct {
	Format   Format
	Encoding Encoding
	Scan     *types.ScanResults
	Model    *types.Model
}

// scanSections are the top-level keys of a scan document.
var scanSections = []string{"port_scan", "vuln_scan", "waf", "waf_bypass"}

// modelFields are top-level keys only an exported model document carries.
var modelFields = []string{"run_id", "risk_scores", "attack_surface"}

// Parse detects whether data is a scan document or an exported model, in
// JSON or YAML, and decodes it. Empty input is an empty scan.
func Parse(data []byte) (*ParseResult, error) {
	result := &ParseResult{Format: FormatScan, Encoding: EncodingJSON}

	doc := bytes.TrimSpace(data)
	if len(doc) == 0 {
		result.Scan = &types.ScanResults{}
		return result, nil
	}
	if doc[0] != '{' {
		converted, err := yamlToJSON(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid YAML input: %w", types.ErrMalformedInput, err)
		}
		doc = converted
		result.Encoding = EncodingYAML
	}

	// Probe the top level to detect the document kind
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(doc, &probe); err != nil {
		return nil, fmt.Errorf("%w: input is not an object: %w", types.ErrMalformedInput, err)
	}

	switch {
	case hasAny(probe, modelFields):
		m, err := store.Decode(doc)
		if err != nil {
			return nil, fmt.Errorf("parsing model: %w", err)
		}
		result.Format = FormatModel
		result.Model = m
		return result, nil

	case len(probe) == 0 || hasAny(probe, scanSections):
		var scan types.ScanResults
		if err := json.Unmarshal(doc, &scan); err != nil {
			return nil, fmt.Errorf("%w: parsing scan results: %w", types.ErrMalformedInput, err)
		}
		result.Scan = &scan
		return result, nil
	}

	return nil, fmt.Errorf("%w: unrecognized input format: not scan results or a threat model", types.ErrMalformedInput)
}

func hasAny(probe map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := probe[k]; ok {
			return true
		}
	}
	return false
}
