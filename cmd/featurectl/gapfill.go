package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"event-feature-lab/internal/gapfill"
)

func newGapfillCmd(a *app) *cobra.Command {
	var (
		tickers []string
		window  filterFlags
	)

	cmd := &cobra.Command{
		Use:   "gapfill",
		Short: "Forward-fill missing minute bars inside regular sessions",
		Long: `Write interpolated 1m bars for session minutes that have no bar, carrying
the last raw close forward. Existing bars are never replaced.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(tickers) == 0 {
				return errors.New("--tickers is required")
			}
			if window.startDate == "" || window.endDate == "" {
				return errors.New("--start-date and --end-date are required")
			}
			rng, err := window.filter(a.cal.Location())
			if err != nil {
				return err
			}

			s, err := openStores(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			runner := gapfill.NewRunner(s.prices, a.cal, a.logger)
			for _, t := range tickers {
				t = strings.ToUpper(strings.TrimSpace(t))
				started := time.Now()
				res, err := runner.FillRange(cmd.Context(), t, rng.Start, rng.End)
				if err != nil {
					return fmt.Errorf("gapfill %s: %w", t, err)
				}
				fmt.Printf("%s: %d trading days, %d bars seen, %d filled (%s)\n",
					t, res.Days, res.Bars, res.Written, time.Since(started).Round(time.Millisecond))
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringSliceVar(&tickers, "tickers", nil, "Tickers to fill")
	fs.StringVar(&window.startDate, "start-date", "", "First date, YYYY-MM-DD (inclusive)")
	fs.StringVar(&window.endDate, "end-date", "", "Last date, YYYY-MM-DD (inclusive)")
	return cmd
}
