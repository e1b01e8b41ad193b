// Package cli provides the covidstats command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"covidstats/internal/config"
	"covidstats/internal/metrics"
	"covidstats/internal/pipeline"
)

// Version is set at build time.
var Version = "0.1.0"

type appKey struct{}

// app is the per-invocation state shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Recorder
	pipeline *pipeline.Pipeline
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "covidstats",
		Short: "Ingest and summarize the COVID-19 Colombia case dataset",
		Long: `covidstats reads the national COVID-19 positive case CSV, normalizes it,
caches it as Parquet and computes the statistics bundle used by the dashboard.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg)
			if cfg.ConfigFile != "" {
				logger.Debug("using config file", "path", cfg.ConfigFile)
			}
			rec := metrics.New()
			a := &app{
				cfg:     cfg,
				logger:  logger,
				metrics: rec,
				pipeline: pipeline.New(pipeline.Config{
					SourcePath:           cfg.Source,
					CacheDir:             cfg.CacheDir,
					ChunkSize:            cfg.ChunkSize,
					CategoricalThreshold: cfg.CategoricalThreshold,
					TopN:                 cfg.TopN,
					Logger:               logger,
					Metrics:              rec,
				}),
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			a, ok := cmd.Context().Value(appKey{}).(*app)
			if !ok || a.cfg.MetricsFile == "" {
				return nil
			}
			if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
			a.logger.Debug("metrics written", "path", a.cfg.MetricsFile)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./covidstats.yaml)")
	pf.String("source", config.DefaultSource, "Path to the raw case CSV")
	pf.String("cache-dir", config.DefaultCacheDir, "Directory holding the Parquet and JSON caches")
	pf.Int("chunk-size", config.DefaultChunkSize, "Rows per ingestion chunk")
	pf.Int("categorical-threshold", config.DefaultCategoricalThreshold, "Distinct values below which a text column is categorical")
	pf.Int("top-n", config.DefaultTopN, "Length of rankings and summaries")
	pf.BoolP("verbose", "v", false, "Debug logging")
	pf.String("log-format", config.DefaultLogFormat, "Log format (text|json)")
	pf.String("metrics-file", "", "Write run metrics to this file in Prometheus text format")

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newLoadCommand())
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newSampleCommand())
	rootCmd.AddCommand(newFilterCommand())
	rootCmd.AddCommand(newGroupCommand())
	rootCmd.AddCommand(newCrossTabCommand())
	rootCmd.AddCommand(newSummaryCommand())
	rootCmd.AddCommand(newClearCacheCommand())
	rootCmd.AddCommand(newExportPGCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, pipeline.ErrSourceNotFound) {
			fmt.Fprintln(os.Stderr, "Download the dataset or point --source at it, or run from an existing cache.")
		}
		return err
	}
	return nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Verbose {
		opts.Level = slog.LevelDebug
	}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getApp(cmd *cobra.Command) (*app, error) {
	if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
		return a, nil
	}
	return nil, errors.New("configuration not loaded")
}

// session loads the table and bundle, from cache when possible.
func session(cmd *cobra.Command, force bool) (*app, *pipeline.Session, error) {
	a, err := getApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := a.pipeline.IngestOrLoad(cmd.Context(), force)
	if err != nil {
		return nil, nil, err
	}
	return a, s, nil
}
