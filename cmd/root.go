// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bonial-oss/threatmodel/internal/analyzer"
	"github.com/bonial-oss/threatmodel/internal/input"
	"github.com/bonial-oss/threatmodel/internal/output"
	"github.com/bonial-oss/threatmodel/internal/risk"
	"github.com/bonial-oss/threatmodel/internal/store"
	"github.com/bonial-oss/threatmodel/internal/types"
	"github.com/bonial-oss/threatmodel/internal/utils"
)

// Version is set at build time via ldflags.
var Version = "dev"

const (
	envPrefix             = "THREATMODEL"
	defaultConfigFilename = "threatmodel"
)

// ExitError signals a non-zero exit code with an optional message.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Options holds all CLI flag values.
type Options struct {
	ConfigFile     string
	Format         string
	Output         string
	Export         string
	DedupeAssets   bool
	OpenOnly       bool
	FailOnScore    float64
	FailOnDangling bool
	MinScore       float64
	SortBy         string
	LogLevel       string

	logger *slog.Logger
}

// NewRootCommand creates the root cobra command with all flags.
func NewRootCommand() *cobra.Command {
	opts := &Options{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "threatmodel [file]",
		Short:   "Fuse security scan findings into assets, threats, risk scores and an attack-surface summary",
		Version: Version,
		Long: `threatmodel reads the combined output of port, vulnerability and WAF scans
(JSON or YAML, from a file or stdin) and builds a threat model: an asset
inventory, the threats affecting it, per-asset risk scores and an
attack-surface summary with mitigation suggestions.

A previously exported model can be given instead of scan results; it is
rendered again without being re-analyzed.

Usage:
  threatmodel scan.json --format table
  cat scan.yaml | threatmodel --export out/model.json --fail-on-score 90`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initializeConfig(cmd, v, opts.ConfigFile); err != nil {
				return usageError("reading config: %v", err)
			}
			logger, err := newLogger(cmd.ErrOrStderr(), opts.LogLevel)
			if err != nil {
				return usageError("%v", err)
			}
			opts.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigFile, "config", "", "Config file (default ./threatmodel.yaml)")
	flags.StringVar(&opts.Format, "format", "json", "Output format: json, yaml, table, sarif")
	flags.StringVarP(&opts.Output, "output", "o", "", "Write to file instead of stdout")
	flags.StringVar(&opts.Export, "export", "", "Also write the full model document to this path (.json, .yaml)")
	flags.BoolVar(&opts.DedupeAssets, "dedupe-assets", false, "Merge assets sharing a name into the first one discovered")
	flags.BoolVar(&opts.OpenOnly, "open-only", false, "Skip port records not reported as open")
	flags.Float64Var(&opts.FailOnScore, "fail-on-score", 0, "Exit code 1 if any asset scores >= value")
	flags.BoolVar(&opts.FailOnDangling, "fail-on-dangling", false, "Exit code 1 if a threat names an unknown asset")
	flags.Float64Var(&opts.MinScore, "min-score", 0, "Only show assets scoring >= value")
	flags.StringVar(&opts.SortBy, "sort-by", output.SortByScore, "Sort table by: score, value, name")
	flags.StringVarP(&opts.LogLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")

	return cmd
}

// newLogger builds the stderr logger and installs it as the default.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
	return logger, nil
}

func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(defaultConfigFilename)
		v.AddConfigPath(".")
	}

	// A missing default config file is fine; an unreadable one is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	v.SetEnvPrefix(envPrefix)
	// Environment variables can't have dashes in them, so --fail-on-score
	// maps to THREATMODEL_FAIL_ON_SCORE.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return bindFlags(cmd, v)
}

// bindFlags applies config file and environment values to every flag the
// user did not set explicitly.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var errs []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" || f.Name == "version" {
			return
		}
		if !f.Changed && v.IsSet(f.Name) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("flag --%s: %w", f.Name, err))
			}
		}
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func validateOptions(opts *Options) error {
	switch opts.Format {
	case "json", "yaml", "table", "sarif":
	default:
		return usageError("unsupported output format: %s", opts.Format)
	}
	switch opts.SortBy {
	case output.SortByScore, output.SortByValue, output.SortByName:
	default:
		return usageError("unsupported sort key: %s", opts.SortBy)
	}
	if opts.FailOnScore < 0 || opts.FailOnScore > 100 {
		return usageError("--fail-on-score must be between 0 and 100")
	}
	if opts.MinScore < 0 || opts.MinScore > 100 {
		return usageError("--min-score must be between 0 and 100")
	}
	return nil
}

// run orchestrates reading, analysis, export and rendering.
func run(cmd *cobra.Command, opts *Options, args []string) error {
	if err := validateOptions(opts); err != nil {
		return err
	}
	logger := opts.logger

	data, source, err := readInput(cmd, args)
	if err != nil {
		return usageError("%v", err)
	}

	parsed, err := input.Parse(data)
	if err != nil {
		return usageError("parsing %s: %v", source, err)
	}
	logger.Debug("parsed input", "source", source, "format", parsed.Format.String())

	cfg := analyzer.Config{
		DedupeAssets:   opts.DedupeAssets,
		OpenPortsOnly:  opts.OpenOnly,
		FailOnScore:    opts.FailOnScore,
		FailOnDangling: opts.FailOnDangling,
	}

	var model *types.Model
	var violations []string
	switch parsed.Format {
	case input.FormatModel:
		model = parsed.Model
		// Recorded issues may be stale; check the references again.
		_, dangling := risk.NewIndex(model.Assets, model.Threats)
		for _, err := range dangling {
			logger.Warn("data contract problem", "error", err)
		}
		violations = analyzer.Violations(model, dangling, cfg)
	default:
		result, err := analyzer.New(logger).Analyze(parsed.Scan, cfg)
		if err != nil {
			return usageError("analyzing %s: %v", source, err)
		}
		model = result.Model
		violations = result.Violations
	}

	if opts.Export != "" {
		if err := store.Export(opts.Export, model); err != nil {
			return fmt.Errorf("exporting model: %w", err)
		}
		logger.Info("exported threat model", "path", opts.Export, "run_id", model.RunID)
	}

	// Determine output writer.
	var w io.Writer
	if opts.Output != "" && opts.Output != "-" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = cmd.OutOrStdout()
	}

	if err := render(w, model, opts); err != nil {
		return err
	}

	if len(violations) > 0 {
		for _, v := range violations {
			logger.Warn("policy violation", "reason", v)
		}
		return &ExitError{Code: 1, Message: "policy violation detected"}
	}
	return nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, string, error) {
	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, "", fmt.Errorf("reading input: %w", err)
		}
		return data, args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, "", fmt.Errorf("reading stdin: %w", err)
	}
	return data, "stdin", nil
}

func render(w io.Writer, m *types.Model, opts *Options) error {
	switch opts.Format {
	case "table":
		return output.WriteTable(w, m, output.TableConfig{
			SortBy:     opts.SortBy,
			MinScore:   opts.MinScore,
			IsTerminal: output.IsOutputToTerminal(w),
		})
	case "yaml":
		return output.WriteYAML(w, withMinScore(m, opts.MinScore))
	case "sarif":
		return output.WriteSARIF(w, withMinScore(m, opts.MinScore), Version)
	default:
		return output.WriteJSON(w, withMinScore(m, opts.MinScore))
	}
}

// withMinScore returns a view of m without the assets scoring below
// threshold. Threats and the attack-surface summary are kept as computed.
func withMinScore(m *types.Model, threshold float64) *types.Model {
	if threshold <= 0 {
		return m
	}
	view := *m
	view.Assets = utils.Filter(m.Assets, func(a types.Asset) bool {
		return m.RiskScores[a.Name] >= threshold
	})
	view.RiskScores = make(map[string]float64, len(view.Assets))
	for _, a := range view.Assets {
		view.RiskScores[a.Name] = m.RiskScores[a.Name]
	}
	return &view
}
