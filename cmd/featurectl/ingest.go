package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"event-feature-lab/internal/ingestion"
)

func newIngestCmd(a *app) *cobra.Command {
	var seed seedFlags

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load price bars and events from files",
		Long: `Load price bars (CSV: ticker,timestamp,timeframe,open,high,low,close,volume,source)
and events (JSON lines with event_id, ticker, timestamp, payload) into the
configured stores. Existing events are left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if seed.empty() {
				return fmt.Errorf("nothing to ingest: set --prices-file or --events-file")
			}
			s, err := openStores(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			return a.seed(cmd.Context(), s, seed)
		},
	}
	seed.register(cmd.Flags())
	return cmd
}

// seed loads the files named by f into s.
func (a *app) seed(ctx context.Context, s *stores, f seedFlags) error {
	loader := ingestion.NewLoader(ingestion.LoaderOptions{
		Prices: s.prices,
		Events: s.eventsW,
		Logger: a.logger,
	})

	if f.pricesFile != "" {
		file, err := os.Open(f.pricesFile)
		if err != nil {
			return fmt.Errorf("open prices file: %w", err)
		}
		defer file.Close()
		res, err := loader.LoadPrices(ctx, file, f.overwrite)
		if err != nil {
			return err
		}
		fmt.Printf("Prices: read %d, written %d, skipped %d\n", res.Read, res.Written, res.Duplicates)
	}

	if f.eventsFile != "" {
		file, err := os.Open(f.eventsFile)
		if err != nil {
			return fmt.Errorf("open events file: %w", err)
		}
		defer file.Close()
		res, err := loader.LoadEvents(ctx, file)
		if err != nil {
			return err
		}
		fmt.Printf("Events: read %d, written %d, skipped %d\n", res.Read, res.Written, res.Duplicates)
	}
	return nil
}
