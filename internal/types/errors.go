// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks a single evidence record that could not be
	// decoded. The record is skipped; the rest of the batch is processed.
	ErrMalformedInput = errors.New("malformed input")

	// ErrDanglingReference marks a threat that names an asset absent from
	// the inventory.
	ErrDanglingReference = errors.New("dangling asset reference")

	// ErrDuplicateAsset marks an asset name produced more than once in a run.
	ErrDuplicateAsset = errors.New("duplicate asset")
)

// Input sections a RecordError can originate from.
const (
	StagePortScan = "port_scan"
	StageVulnScan = "vuln_scan"
	StageWAF      = "waf"
)

// RecordError describes one skipped input record.
type RecordError struct {
	Stage string
	// Path locates the record inside its section, e.g. "10.0.0.5/tcp/443".
	Path string
	Err  error
}

// NewRecordError wraps err as a malformed-input error for the record at path.
func NewRecordError(stage, path string, err error) *RecordError {
	return &RecordError{Stage: stage, Path: path, Err: err}
}

func (e *RecordError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

// Unwrap exposes both the malformed-input sentinel and the decode cause.
func (e *RecordError) Unwrap() []error {
	return []error{ErrMalformedInput, e.Err}
}

// DanglingReferenceError reports a threat whose affected_assets entry names
// an asset that is not in the inventory.
type DanglingReferenceError struct {
	Threat string
	Asset  string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("threat %q references unknown asset %q", e.Threat, e.Asset)
}

func (e *DanglingReferenceError) Unwrap() error { return ErrDanglingReference }

// DuplicateAssetError reports an asset name that was classified again.
type DuplicateAssetError struct {
	Name string
	// Merged is true when the duplicate's services were folded into the
	// first asset of that name instead of adding a second one.
	Merged bool
}

func (e *DuplicateAssetError) Error() string {
	if e.Merged {
		return fmt.Sprintf("asset %q classified more than once, services merged", e.Name)
	}
	return fmt.Sprintf("asset %q classified more than once", e.Name)
}

func (e *DuplicateAssetError) Unwrap() error { return ErrDuplicateAsset }

// IssueKind classifies a recorded data-contract problem.
type IssueKind string

const (
	IssueMalformedInput    IssueKind = "malformed_input"
	IssueDanglingReference IssueKind = "dangling_reference"
	IssueDuplicateAsset    IssueKind = "duplicate_asset"
	IssueOther             IssueKind = "other"
)

// Issue is the persisted form of a problem noticed during a run.
type Issue struct {
	Kind    IssueKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

// NewIssue converts an error into an Issue, deriving the kind from the
// sentinel it wraps.
func NewIssue(err error) Issue {
	kind := IssueOther
	switch {
	case errors.Is(err, ErrMalformedInput):
		kind = IssueMalformedInput
	case errors.Is(err, ErrDanglingReference):
		kind = IssueDanglingReference
	case errors.Is(err, ErrDuplicateAsset):
		kind = IssueDuplicateAsset
	}
	return Issue{Kind: kind, Message: err.Error()}
}
