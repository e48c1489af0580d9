// Command featurectl extracts point-in-time market features for news events.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"event-feature-lab/internal/calendar"
	"event-feature-lab/internal/config"
)

// app holds state shared by every subcommand, set up before each runs.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    config.Config
	cal    *calendar.Calendar
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "featurectl",
		Short: "Point-in-time market feature extraction for news events",
		Long: `featurectl resolves prices around each event across a fixed catalogue of
time windows, for the event's instrument and a set of benchmarks, and stores
one feature record per event.

Examples:
  featurectl migrate
  featurectl ingest --prices-file bars.csv --events-file events.jsonl
  featurectl extract --mode test --limit 5
  featurectl extract --mode batch --ticker AAPL --start-date 2024-01-01
  featurectl export --format csv --output features.csv`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", os.Getenv("FEATURECTL_CONFIG"), "Path to YAML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format override (console, json)")

	root.AddCommand(
		newExtractCmd(a),
		newIngestCmd(a),
		newGapfillCmd(a),
		newExportCmd(a),
		newMigrateCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	cal, err := calendar.New(cfg.Market.Timezone, calendar.NYSEHolidays())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.cal = cal
	a.logger = logger.With().Str("cmd", cmd.Name()).Logger()
	return nil
}

func newLogger(cfg config.LogConfig, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	w := out
	switch cfg.Format {
	case "json":
	case "console", "":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: must be console or json", cfg.Format)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
