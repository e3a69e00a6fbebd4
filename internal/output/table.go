// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	aqtable "github.com/aquasecurity/table"
	"github.com/aquasecurity/tml"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/bonial-oss/threatmodel/internal/risk"
	"github.com/bonial-oss/threatmodel/internal/types"
	"github.com/bonial-oss/threatmodel/internal/utils"
)

// Sort keys for the asset table.
const (
	SortByScore = "score"
	SortByValue = "value"
	SortByName  = "name"
)

// TableConfig controls which assets are displayed and how rows are sorted.
type TableConfig struct {
	SortBy     string  // "score", "value", "name", "" (preserve order)
	MinScore   float64 // hide assets scoring below this
	IsTerminal bool    // true when output goes to a terminal (enables ANSI styling)
}

// IsOutputToTerminal returns true if the writer is stdout connected to a
// character device (TTY).
func IsOutputToTerminal(output io.Writer) bool {
	return output == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
}

// assetRow pairs an asset with its score for table rendering.
type assetRow struct {
	asset types.Asset
	score float64
	index int // original index for stable sort
}

// WriteTable writes a threat model as a sequence of titled sections.
func WriteTable(w io.Writer, m *types.Model, cfg TableConfig) error {
	writeTitle(w, "Assets", cfg.IsTerminal)
	fmt.Fprintln(w, assetSummary(m.Assets))
	fmt.Fprintln(w)
	writeAssetTable(w, assetRows(m, cfg), cfg)

	fmt.Fprintln(w)
	writeTitle(w, "Threats", cfg.IsTerminal)
	fmt.Fprintln(w, levelSummary(m.Threats))
	fmt.Fprintln(w)
	writeThreatTable(w, m.Threats, cfg)

	fmt.Fprintln(w)
	writeTitle(w, "Attack Surface", cfg.IsTerminal)
	writeAttackSurface(w, m.AttackSurface, cfg.IsTerminal)

	fmt.Fprintln(w)
	writeTitle(w, "Mitigations", cfg.IsTerminal)
	if len(m.AttackSurface.MitigationSuggestions) == 0 {
		fmt.Fprintln(w, "none")
	}
	for _, s := range m.AttackSurface.MitigationSuggestions {
		fmt.Fprintf(w, "  - %s\n", s)
	}

	if len(m.Issues) > 0 {
		fmt.Fprintln(w)
		writeTitle(w, fmt.Sprintf("Issues (Total: %d)", len(m.Issues)), cfg.IsTerminal)
		for _, is := range m.Issues {
			fmt.Fprintf(w, "  [%s] %s\n", is.Kind, is.Message)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, overallLine(m.Overall, cfg.IsTerminal))
	return nil
}

// writeTitle writes a section title, underlined with markup on a terminal
// and with "=" otherwise.
func writeTitle(w io.Writer, title string, isTerminal bool) {
	if isTerminal {
		_ = tml.Fprintf(w, "<underline><bold>%s</bold></underline>\n", title)
		return
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", utf8.RuneCountInString(title)))
}

// newTableWriter creates a table writer with borders and row separators.
// When isTerminal is true, header and line styles use ANSI formatting.
func newTableWriter(w io.Writer, isTerminal bool) *aqtable.Table {
	tw := aqtable.New(w)
	if isTerminal {
		tw.SetHeaderStyle(aqtable.StyleBold)
		tw.SetLineStyle(aqtable.StyleDim)
	}
	tw.SetBorders(true)
	tw.SetRowLines(true)
	return tw
}

func assetRows(m *types.Model, cfg TableConfig) []assetRow {
	rows := make([]assetRow, 0, len(m.Assets))
	for i, a := range m.Assets {
		score := m.RiskScores[a.Name]
		if cfg.MinScore > 0 && score < cfg.MinScore {
			continue
		}
		rows = append(rows, assetRow{asset: a, score: score, index: i})
	}
	sortRows(rows, cfg.SortBy)
	return rows
}

// sortRows sorts the asset rows based on the given sort key.
func sortRows(rows []assetRow, sortBy string) {
	switch sortBy {
	case SortByScore:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].score > rows[j].score
		})
	case SortByValue:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].asset.Value > rows[j].asset.Value
		})
	case SortByName:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].asset.Name < rows[j].asset.Name
		})
	default:
		// preserve original order
	}
}

func writeAssetTable(w io.Writer, rows []assetRow, cfg TableConfig) {
	tw := newTableWriter(w, cfg.IsTerminal)
	tw.SetHeaders("Asset", "Type", "Value", "Exposed", "Services", "Score")
	for _, r := range rows {
		tw.AddRow(
			r.asset.Name,
			string(r.asset.Type),
			fmt.Sprintf("%d", r.asset.Value),
			yesNo(r.asset.Exposed),
			joinOrDash(r.asset.Services),
			formatScore(r.score, cfg.IsTerminal),
		)
	}
	tw.Render()
}

// writeThreatTable renders the risk matrix, most severe threats first.
func writeThreatTable(w io.Writer, threats []types.Threat, cfg TableConfig) {
	sorted := append([]types.Threat(nil), threats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if ri, rj := sorted[i].Level.Rank(), sorted[j].Level.Rank(); ri != rj {
			return ri > rj
		}
		return sorted[i].Likelihood*sorted[i].Impact > sorted[j].Likelihood*sorted[j].Impact
	})

	tw := newTableWriter(w, cfg.IsTerminal)
	tw.SetHeaders("Threat", "Level", "Likelihood", "Impact", "Affected Assets", "Attack Vectors")
	for _, t := range sorted {
		level := strings.ToUpper(string(t.Level))
		if cfg.IsTerminal {
			level = colorizeLevel(t.Level)
		}
		tw.AddRow(
			t.Name,
			level,
			fmt.Sprintf("%d", t.Likelihood),
			fmt.Sprintf("%d", t.Impact),
			affected(t.AffectedAssets),
			joinOrDash(t.AttackVectors),
		)
	}
	tw.Render()
}

func writeAttackSurface(w io.Writer, r types.AttackSurfaceReport, isTerminal bool) {
	fmt.Fprintf(w, "Exposed services: %s\n", serviceCounts(r.ExposedServices))
	fmt.Fprintf(w, "Critical assets:  %s\n", joinOrDash(utils.Map(r.CriticalAssets, func(a types.CriticalAsset) string {
		return a.Name
	})))
	fmt.Fprintf(w, "High-risk threats: %d\n", len(r.HighRiskThreats))
	for _, t := range r.HighRiskThreats {
		level := strings.ToUpper(string(t.Level))
		if isTerminal {
			level = colorizeLevel(t.Level)
		}
		fmt.Fprintf(w, "  - %s [%s]\n", t.Name, level)
	}
	fmt.Fprintf(w, "Attack vectors:   %s\n", joinOrDash(r.AttackVectors))
}

// serviceCounts renders a multiset of services as "https x2, mysql".
func serviceCounts(services []string) string {
	if len(services) == 0 {
		return "-"
	}
	counts := make(map[string]int, len(services))
	for _, s := range services {
		counts[s]++
	}
	parts := utils.Map(utils.Unique(services), func(s string) string {
		if n := counts[s]; n > 1 {
			return fmt.Sprintf("%s x%d", s, n)
		}
		return s
	})
	return strings.Join(parts, ", ")
}

// assetSummary returns a line like:
// Total: 3 (exposed: 2, critical: 1)
func assetSummary(assets []types.Asset) string {
	var exposed, critical int
	for _, a := range assets {
		if a.Exposed {
			exposed++
		}
		if a.Value >= 8 {
			critical++
		}
	}
	return fmt.Sprintf("Total: %d (exposed: %d, critical: %d)", len(assets), exposed, critical)
}

// levelSummary returns a line like:
// Total: 4 (LOW: 0, MEDIUM: 1, HIGH: 2, CRITICAL: 1)
func levelSummary(threats []types.Threat) string {
	counts := map[types.ThreatLevel]int{}
	for _, t := range threats {
		counts[t.Level]++
	}
	return fmt.Sprintf("Total: %d (LOW: %d, MEDIUM: %d, HIGH: %d, CRITICAL: %d)",
		len(threats), counts[types.ThreatLow], counts[types.ThreatMedium], counts[types.ThreatHigh], counts[types.ThreatCritical])
}

// levelColors maps threat levels to color functions.
var levelColors = map[types.ThreatLevel]func(a ...any) string{
	types.ThreatLow:      color.New(color.FgBlue).SprintFunc(),
	types.ThreatMedium:   color.New(color.FgYellow).SprintFunc(),
	types.ThreatHigh:     color.New(color.FgHiRed).SprintFunc(),
	types.ThreatCritical: color.New(color.FgRed).SprintFunc(),
}

// colorizeLevel returns the upper-cased level wrapped in ANSI color codes.
func colorizeLevel(level types.ThreatLevel) string {
	s := strings.ToUpper(string(level))
	if fn, ok := levelColors[level]; ok {
		return fn(s)
	}
	return s
}

var riskColors = map[types.RiskLevel]func(a ...any) string{
	types.RiskLow:    color.New(color.FgGreen).SprintFunc(),
	types.RiskMedium: color.New(color.FgYellow).SprintFunc(),
	types.RiskHigh:   color.New(color.FgRed, color.Bold).SprintFunc(),
}

func formatScore(score float64, isTerminal bool) string {
	s := fmt.Sprintf("%.1f", score)
	if !isTerminal {
		return s
	}
	// Low scores stay uncolored in the asset table.
	level := risk.LevelFor(score)
	if level == types.RiskLow {
		return s
	}
	return riskColors[level](s)
}

func overallLine(o types.Overall, isTerminal bool) string {
	level := strings.ToUpper(string(o.Level))
	if isTerminal {
		if fn, ok := riskColors[o.Level]; ok {
			level = fn(level)
		}
	}
	return fmt.Sprintf("Overall risk: %s (average score %.1f)", level, o.AverageScore)
}

// affected lists one asset per line.
func affected(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "\n")
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}
