package gapfill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"event-feature-lab/internal/calendar"
	"event-feature-lab/internal/storage"
)

// Result summarizes a fill run.
type Result struct {
	Days    int // trading days scanned
	Bars    int // existing bars seen in sessions
	Written int // interpolated bars written
}

// Runner fills session gaps for one ticker at a time.
type Runner struct {
	store storage.PriceStore
	cal   *calendar.Calendar
	log   zerolog.Logger
}

// NewRunner creates a new gap fill runner.
func NewRunner(store storage.PriceStore, cal *calendar.Calendar, log zerolog.Logger) *Runner {
	if cal == nil {
		cal = calendar.NYSE()
	}
	return &Runner{store: store, cal: cal, log: log}
}

// FillDay fills the regular session on the exchange-local date of day.
// Non-trading days are a no-op. Existing bars are never replaced.
func (r *Runner) FillDay(ctx context.Context, ticker string, day time.Time) (Result, error) {
	if !r.cal.IsTradingDay(day) {
		return Result{}, nil
	}
	ticker = strings.ToUpper(ticker)
	open, end := r.cal.MarketOpenOn(day), r.cal.MarketCloseOn(day)

	obs, err := r.store.Query(ctx, ticker, open, end)
	if err != nil {
		return Result{}, fmt.Errorf("query %s session %s: %w", ticker, open.Format("2006-01-02"), err)
	}
	SortObservations(obs)

	fills := GenerateFills(ticker, obs, open, end)
	res := Result{Days: 1, Bars: len(obs)}
	if len(fills) == 0 {
		return res, nil
	}

	n, err := r.store.Upsert(ctx, fills, false)
	if err != nil {
		return res, fmt.Errorf("write fills for %s: %w", ticker, err)
	}
	res.Written = n

	r.log.Debug().
		Str("ticker", ticker).
		Str("date", open.Format("2006-01-02")).
		Int("bars", len(obs)).
		Int("filled", n).
		Msg("session gaps filled")
	return res, nil
}

// FillRange fills every trading day whose local date lies in [start, end).
func (r *Runner) FillRange(ctx context.Context, ticker string, start, end time.Time) (Result, error) {
	var total Result
	day, _ := r.cal.DayBounds(start)
	for day.Before(end) {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := r.FillDay(ctx, ticker, day)
		if err != nil {
			return total, err
		}
		total.Days += res.Days
		total.Bars += res.Bars
		total.Written += res.Written
		day = r.cal.NextTradingDay(day)
	}

	r.log.Info().
		Str("ticker", strings.ToUpper(ticker)).
		Int("days", total.Days).
		Int("written", total.Written).
		Msg("gap fill complete")
	return total, nil
}
