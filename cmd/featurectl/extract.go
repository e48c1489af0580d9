package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"event-feature-lab/internal/extractor"
	"event-feature-lab/internal/observability"
	"event-feature-lab/internal/orchestrator"
	"event-feature-lab/internal/reporting"
)

type extractFlags struct {
	mode           string
	limit          int
	eventID        string
	benchmarks     []string
	workers        int
	chunkSize      int
	forceProcess   bool
	forceOverwrite bool
	reportPath     string

	filter filterFlags
	seed   seedFlags
}

func newExtractCmd(a *app) *cobra.Command {
	f := &extractFlags{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract feature records for pending events",
		Long: `Extract one feature record per event.

Modes:
  test    dry run over at most --limit events (default 5); nothing is written
  single  one event by --event-id
  batch   every matching event, in chunks, --workers at a time

Events that already have a record are skipped unless --force-overwrite is
set. --force-process additionally retries events whose record failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExtract(cmd.Context(), f)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.mode, "mode", string(orchestrator.ModeBatch), "Run mode: test, single or batch")
	fs.IntVar(&f.limit, "limit", 0, "Maximum events to process (0 = config / unlimited)")
	fs.StringVar(&f.eventID, "event-id", "", "Event to process in single mode")
	fs.StringSliceVar(&f.benchmarks, "benchmarks", nil, "Benchmark tickers (overrides config)")
	fs.IntVar(&f.workers, "workers", 0, "Concurrent extractions (overrides config)")
	fs.IntVar(&f.chunkSize, "chunk-size", 0, "Events fetched per chunk (overrides config)")
	fs.BoolVar(&f.forceProcess, "force-process", false, "Retry events whose stored record failed")
	fs.BoolVar(&f.forceOverwrite, "force-overwrite", false, "Recompute and replace every stored record")
	fs.StringVar(&f.reportPath, "report", "", "Write a markdown run report to this path")
	f.filter.register(fs)
	f.seed.register(fs)
	return cmd
}

func (a *app) runExtract(ctx context.Context, f *extractFlags) error {
	mode, err := orchestrator.ParseMode(f.mode)
	if err != nil {
		return err
	}
	if mode == orchestrator.ModeSingle && f.eventID == "" {
		return errors.New("--event-id is required in single mode")
	}
	filter, err := f.filter.filter(a.cal.Location())
	if err != nil {
		return err
	}

	cfg := a.cfg
	if len(f.benchmarks) > 0 {
		cfg.Extraction.Benchmarks = nil
		for _, b := range f.benchmarks {
			cfg.Extraction.Benchmarks = append(cfg.Extraction.Benchmarks, strings.ToUpper(strings.TrimSpace(b)))
		}
	}
	if f.workers > 0 {
		cfg.Batch.Workers = f.workers
	}
	if f.chunkSize > 0 {
		cfg.Batch.ChunkSize = f.chunkSize
	}
	limit := f.limit
	if limit == 0 {
		limit = cfg.Batch.Limit
		if mode == orchestrator.ModeTest {
			limit = cfg.Batch.TestLimit
		}
	}

	if cfg.Metrics.Addr != "" {
		stopMetrics := serveMetrics(cfg.Metrics.Addr, a.logger)
		defer stopMetrics()
	}

	s, err := openStores(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if !f.seed.empty() {
		if err := a.seed(ctx, s, f.seed); err != nil {
			return err
		}
	}

	ex := extractor.New(s.prices, extractor.Options{
		Calendar:        a.cal,
		DefaultTicker:   cfg.Extraction.DefaultTicker,
		CoverageWindow:  cfg.Extraction.CoverageWindow.Duration,
		MaxFallbackDays: cfg.Extraction.MaxFallbackDays,
		ReadTimeout:     cfg.Extraction.ReadTimeout.Duration,
		Logger:          a.logger,
	})

	orch := orchestrator.New(orchestrator.Options{
		EventStore:    s.events,
		FeatureStore:  s.features,
		Extractor:     ex,
		Benchmarks:    cfg.Extraction.Benchmarks,
		DefaultTicker: cfg.Extraction.DefaultTicker,
		ChunkSize:     cfg.Batch.ChunkSize,
		Workers:       cfg.Batch.Workers,
		Logger:        a.logger,
	})

	started := time.Now()
	result, runErr := orch.Run(ctx, orchestrator.RunOptions{
		Mode:           mode,
		Limit:          limit,
		EventID:        f.eventID,
		Filter:         filter,
		ForceProcess:   f.forceProcess,
		ForceOverwrite: f.forceOverwrite,
	})
	elapsed := time.Since(started)
	if result != nil {
		printRunSummary(result, elapsed)
		if mode == orchestrator.ModeTest {
			if err := printRecords(result); err != nil {
				return err
			}
		}
		if f.reportPath != "" {
			if err := writeRunReport(ctx, s, f.filter.ticker, result, elapsed, f.reportPath); err != nil {
				return err
			}
		}
	}
	return runErr
}

func printRunSummary(r *orchestrator.RunResult, elapsed time.Duration) {
	fmt.Printf("Run %s (%s) finished in %s\n", r.RunID, r.Mode, elapsed.Round(time.Millisecond))
	fmt.Printf("  Succeeded: %d\n", r.Succeeded)
	fmt.Printf("  Skipped:   %d\n", r.Skipped)
	fmt.Printf("  Failed:    %d\n", r.Failed)
	for _, f := range r.Failures {
		fmt.Printf("    - %s: %s\n", f.EventID, f.Error)
	}
}

func printRecords(r *orchestrator.RunResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Records)
}

func writeRunReport(ctx context.Context, s *stores, ticker string, r *orchestrator.RunResult, elapsed time.Duration, path string) error {
	report, err := reporting.NewGenerator(s.features).Generate(ctx, strings.ToUpper(ticker), r, elapsed)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	if err := os.WriteFile(path, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}

// serveMetrics exposes /metrics and /health until the returned stop is called.
func serveMetrics(addr string, log zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
