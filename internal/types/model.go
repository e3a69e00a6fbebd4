// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"strings"
	"time"
)

// AssetType is the closed set of modeled asset categories.
type AssetType string

const (
	AssetWebServer        AssetType = "web_server"
	AssetDatabase         AssetType = "database"
	AssetFileServer       AssetType = "file_server"
	AssetMailServer       AssetType = "mail_server"
	AssetDomainController AssetType = "domain_controller"
	AssetNetworkDevice    AssetType = "network_device"
)

// Valid reports whether t is one of the known asset types.
func (t AssetType) Valid() bool {
	switch t {
	case AssetWebServer, AssetDatabase, AssetFileServer,
		AssetMailServer, AssetDomainController, AssetNetworkDevice:
		return true
	default:
		return false
	}
}

// ThreatLevel is the closed set of threat severities.
type ThreatLevel string

const (
	ThreatCritical ThreatLevel = "critical"
	ThreatHigh     ThreatLevel = "high"
	ThreatMedium   ThreatLevel = "medium"
	ThreatLow      ThreatLevel = "low"
)

// ParseThreatLevel maps a severity string (case-insensitive) to a level.
func ParseThreatLevel(s string) (ThreatLevel, bool) {
	switch ThreatLevel(strings.ToLower(strings.TrimSpace(s))) {
	case ThreatCritical:
		return ThreatCritical, true
	case ThreatHigh:
		return ThreatHigh, true
	case ThreatMedium:
		return ThreatMedium, true
	case ThreatLow:
		return ThreatLow, true
	default:
		return "", false
	}
}

// Valid reports whether l is one of the known threat levels.
func (l ThreatLevel) Valid() bool {
	return l.Rank() > 0
}

// Rank returns a numeric rank for sorting (higher = more severe).
func (l ThreatLevel) Rank() int {
	switch l {
	case ThreatCritical:
		return 4
	case ThreatHigh:
		return 3
	case ThreatMedium:
		return 2
	case ThreatLow:
		return 1
	default:
		return 0
	}
}

// HighRisk reports whether threats of this level belong in the
// attack-surface high-risk list.
func (l ThreatLevel) HighRisk() bool {
	return l == ThreatCritical || l == ThreatHigh
}

// Asset is a discovered system component of security interest. Name is the
// join key for threats and scores.
type Asset struct {
	Name        string    `json:"name" yaml:"name" validate:"required"`
	Type        AssetType `json:"type" yaml:"type" validate:"oneof=web_server database file_server mail_server domain_controller network_device"`
	Value       int       `json:"value" yaml:"value" validate:"min=1,max=10"`
	Exposed     bool      `json:"exposed" yaml:"exposed"`
	Services    []string  `json:"services" yaml:"services"`
	Description string    `json:"description" yaml:"description"`
}

// HasService reports whether the asset exposes the given service label.
func (a Asset) HasService(service string) bool {
	for _, s := range a.Services {
		if strings.EqualFold(s, service) {
			return true
		}
	}
	return false
}

// Threat is an identified risk arising from one piece of evidence.
// AffectedAssets holds Asset names, not references.
type Threat struct {
	Name           string      `json:"name" yaml:"name" validate:"required"`
	Level          ThreatLevel `json:"level" yaml:"level" validate:"oneof=critical high medium low"`
	Likelihood     int         `json:"likelihood" yaml:"likelihood" validate:"min=1,max=10"`
	Impact         int         `json:"impact" yaml:"impact" validate:"min=1,max=10"`
	Description    string      `json:"description" yaml:"description"`
	AffectedAssets []string    `json:"affected_assets" yaml:"affected_assets"`
	AttackVectors  []string    `json:"attack_vectors" yaml:"attack_vectors"`
}

// CriticalAsset is the attack-surface view of an asset with value >= 8.
type CriticalAsset struct {
	Name        string    `json:"name" yaml:"name"`
	Type        AssetType `json:"type" yaml:"type"`
	Description string    `json:"description" yaml:"description"`
}

// HighRiskThreat is the attack-surface view of a critical or high threat.
type HighRiskThreat struct {
	Name        string      `json:"name" yaml:"name"`
	Level       ThreatLevel `json:"level" yaml:"level"`
	Description string      `json:"description" yaml:"description"`
}

// AttackSurfaceReport aggregates the exposure of one analysis run.
// ExposedServices keeps duplicates; AttackVectors and
// MitigationSuggestions do not.
type AttackSurfaceReport struct {
	ExposedServices       []string         `json:"exposed_services" yaml:"exposed_services"`
	CriticalAssets        []CriticalAsset  `json:"critical_assets" yaml:"critical_assets"`
	HighRiskThreats       []HighRiskThreat `json:"high_risk_threats" yaml:"high_risk_threats"`
	AttackVectors         []string         `json:"attack_vectors" yaml:"attack_vectors"`
	MitigationSuggestions []string         `json:"mitigation_suggestions" yaml:"mitigation_suggestions"`
}

// RiskLevel is the overall verdict for a run.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// Overall summarizes all asset scores of a run.
type Overall struct {
	AverageScore float64   `json:"average_score" yaml:"average_score" validate:"min=0,max=100"`
	Level        RiskLevel `json:"level" yaml:"level" validate:"omitempty,oneof=high medium low"`
}

// Model is the full result of one analysis run and the shape of the
// exported document.
type Model struct {
	RunID         string              `json:"run_id" yaml:"run_id" validate:"omitempty,uuid"`
	GeneratedAt   time.Time           `json:"generated_at" yaml:"generated_at"`
	Assets        []Asset             `json:"assets" yaml:"assets" validate:"dive"`
	Threats       []Threat            `json:"threats" yaml:"threats" validate:"dive"`
	RiskScores    map[string]float64  `json:"risk_scores" yaml:"risk_scores" validate:"dive,min=0,max=100"`
	AttackSurface AttackSurfaceReport `json:"attack_surface" yaml:"attack_surface"`
	Overall       Overall             `json:"overall" yaml:"overall"`
	Issues        []Issue             `json:"issues,omitempty" yaml:"issues,omitempty"`
}
