// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"encoding/json"
	"fmt"
)

// VulnFinding is a single vulnerability-tool finding. Fields the threat
// identifier inspects are typed; all other JSON fields are captured in
// Extras so that nothing the scanner reported is lost.
type VulnFinding struct {
	Vulnerable      bool
	Severity        string
	Type            string
	Difficulty      string
	Impact          string
	Method          string
	Details         string
	Description     string
	InjectionPoints []string
	// Extras holds all other JSON fields.
	Extras map[string]json.RawMessage
}

// findingKnownFields lists the JSON keys that correspond to typed fields on
// VulnFinding. Everything else goes into Extras.
var findingKnownFields = map[string]bool{
	"vulnerable":       true,
	"severity":         true,
	"type":             true,
	"difficulty":       true,
	"impact":           true,
	"method":           true,
	"details":          true,
	"description":      true,
	"injection_points": true,
}

// UnmarshalJSON decodes a finding, rejecting records without a boolean
// "vulnerable" field or with mistyped known fields.
func (f *VulnFinding) UnmarshalJSON(data []byte) error {
	if kind := jsonKind(data); kind != "object" {
		return fmt.Errorf("expected object, got %s", kind)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	get := func(key string, dst interface{}) error {
		raw, ok := all[key]
		if !ok || absent(raw) {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		return nil
	}

	if raw, ok := all["vulnerable"]; !ok || absent(raw) {
		return errMissingField("vulnerable")
	}
	if err := get("vulnerable", &f.Vulnerable); err != nil {
		return err
	}

	fields := []struct {
		key string
		dst *string
	}{
		{"severity", &f.Severity},
		{"type", &f.Type},
		{"difficulty", &f.Difficulty},
		{"impact", &f.Impact},
		{"method", &f.Method},
		{"details", &f.Details},
		{"description", &f.Description},
	}
	for _, s := range fields {
		if err := get(s.key, s.dst); err != nil {
			return err
		}
	}
	if err := get("injection_points", &f.InjectionPoints); err != nil {
		return err
	}

	extras := make(map[string]json.RawMessage)
	for k, val := range all {
		if !findingKnownFields[k] {
			extras[k] = val
		}
	}
	if len(extras) > 0 {
		f.Extras = extras
	}

	return nil
}
