// Package extractor assembles a feature record for one event by resolving
// every catalogue window for the primary instrument and each benchmark.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"event-feature-lab/internal/calendar"
	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/lookup"
	"event-feature-lab/internal/metrics"
	"event-feature-lab/internal/observability"
	"event-feature-lab/internal/storage"
	"event-feature-lab/internal/windows"
)

// DefaultCoverageWindow is the half-width of the bootstrap coverage check.
const DefaultCoverageWindow = 7 * 24 * time.Hour

// Options configures an Extractor.
type Options struct {
	Calendar        *calendar.Calendar // defaults to NYSE
	DefaultTicker   string             // used when the event names no instrument
	CoverageWindow  time.Duration      // primary must have data within ±CoverageWindow
	MaxFallbackDays int
	ReadTimeout     time.Duration
	Logger          zerolog.Logger
}

// Extractor produces FeatureRecords. It holds no per-event state and is
// safe for concurrent use.
type Extractor struct {
	store          storage.PriceStore
	resolver       *lookup.Resolver
	cal            *calendar.Calendar
	defaultTicker  string
	coverageWindow time.Duration
	readTimeout    time.Duration
	logger         zerolog.Logger
}

// New creates an Extractor reading prices from store.
func New(store storage.PriceStore, opts Options) *Extractor {
	cal := opts.Calendar
	if cal == nil {
		cal = calendar.NYSE()
	}
	coverage := opts.CoverageWindow
	if coverage <= 0 {
		coverage = DefaultCoverageWindow
	}
	timeout := opts.ReadTimeout
	if timeout <= 0 {
		timeout = lookup.DefaultReadTimeout
	}

	return &Extractor{
		store: store,
		resolver: lookup.NewResolver(store, lookup.ResolverOptions{
			Calendar:        cal,
			MaxFallbackDays: opts.MaxFallbackDays,
			ReadTimeout:     timeout,
			Logger:          opts.Logger,
		}),
		cal:            cal,
		defaultTicker:  opts.DefaultTicker,
		coverageWindow: coverage,
		readTimeout:    timeout,
		logger:         opts.Logger,
	}
}

// instrumentResult holds one instrument's resolved windows, in catalogue order.
type instrumentResult struct {
	ticker string
	points []*domain.ResolvedPoint
}

// Extract builds the feature record for ev against the given benchmarks.
// Missing windows lower completeness; only invalid input, missing primary
// coverage or cancellation fail the event.
func (e *Extractor) Extract(ctx context.Context, ev *domain.Event, benchmarks []string) (*domain.FeatureRecord, error) {
	started := time.Now()

	if ev == nil || ev.EventID == "" || ev.Timestamp.IsZero() {
		return nil, ErrInvalidEvent
	}
	ticker := ev.ResolveTicker(e.defaultTicker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: event %s has no ticker", ErrInvalidEvent, ev.EventID)
	}
	benchmarks = normalizeBenchmarks(benchmarks, ticker)

	log := e.logger.With().Str("event_id", ev.EventID).Str("ticker", ticker).Logger()

	covered, err := e.hasCoverage(ctx, ticker, ev.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCoverageCheck, ticker, err)
	}
	if !covered {
		return nil, fmt.Errorf("%w: %s within %s of %s", ErrNoCoverage, ticker, e.coverageWindow, ev.Timestamp.UTC().Format(time.RFC3339))
	}

	specs := windows.All()
	instruments := append([]string{ticker}, benchmarks...)
	results := make([]instrumentResult, len(instruments))

	// Instruments are independent reads; each goroutine owns one slot.
	var g errgroup.Group
	for i, inst := range instruments {
		g.Go(func() error {
			points := make([]*domain.ResolvedPoint, len(specs))
			for j, spec := range specs {
				points[j] = e.resolver.ResolveWindow(ctx, inst, spec, ev.Timestamp)
			}
			results[i] = instrumentResult{ticker: inst, points: points}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction of %s abandoned: %w", ev.EventID, err)
	}

	rec := e.assemble(ev, ticker, benchmarks, results)
	log.Debug().
		Float64("completeness", rec.Completeness).
		Int("missing", len(rec.MissingWindows)).
		Msg("features extracted")
	observability.RecordExtraction(time.Since(started).Seconds(), rec.Completeness)
	return rec, nil
}

func (e *Extractor) assemble(ev *domain.Event, ticker string, benchmarks []string, results []instrumentResult) *domain.FeatureRecord {
	windowPrices := make(map[string]domain.WindowPrice)
	points := make(map[string]*domain.ResolvedPoint)
	prices := make(map[string]metrics.WindowPrices, len(results))

	for _, r := range results {
		wp := make(metrics.WindowPrices, len(r.points))
		for _, p := range r.points {
			key := p.Window
			if r.ticker != ticker {
				key = metrics.BenchmarkKey(r.ticker, p.Window)
			}
			points[key] = p
			windowPrices[key] = toWindowPrice(p)
			wp[p.Window] = p.Price()
		}
		prices[r.ticker] = wp
	}

	derived := metrics.ComputeDerived(ticker, prices, benchmarks)
	quality := metrics.ScoreCompleteness(points, windows.TotalWindows()*len(results))
	cls := e.cal.Classify(ev.Timestamp)

	return &domain.FeatureRecord{
		EventID:        ev.EventID,
		Ticker:         ticker,
		EventTimestamp: ev.Timestamp.UTC(),
		Event:          ev.Clone(),
		Benchmarks:     benchmarks,

		Windows:      windowPrices,
		PriceChanges: derived.PriceChanges,
		Alpha:        derived.Alpha,
		Momentum:     derived.Momentum,
		Regime:       metrics.Regimes(derived.Momentum),

		Market: domain.MarketContext{
			Session:         cls.Session,
			MarketHours:     e.cal.IsMarketHours(ev.Timestamp),
			IsMarketOpen:    cls.IsMarketOpen,
			IsExtendedHours: cls.IsExtendedHours,
			IsWeekend:       cls.IsWeekend,
			IsHoliday:       cls.IsHoliday,
		},

		Completeness:         quality.Completeness,
		MissingWindows:       quality.MissingWindows,
		ApproximationQuality: quality.ApproximationQuality,

		Status: domain.RecordStatusCompleted,
	}
}

// hasCoverage reports whether ticker has any observation within the
// coverage window around ts. Counting backends avoid loading the bars.
func (e *Extractor) hasCoverage(ctx context.Context, ticker string, ts time.Time) (bool, error) {
	start, end := ts.Add(-e.coverageWindow), ts.Add(e.coverageWindow)

	readCtx, cancel := context.WithTimeout(ctx, e.readTimeout)
	defer cancel()

	if c, ok := e.store.(storage.PriceCounter); ok {
		n, err := c.CountInRange(readCtx, ticker, start, end)
		return n > 0, err
	}
	obs, err := e.store.Query(readCtx, ticker, start, end)
	return len(obs) > 0, err
}

func toWindowPrice(p *domain.ResolvedPoint) domain.WindowPrice {
	wp := domain.WindowPrice{
		Ticker:           p.Ticker,
		Window:           p.Window,
		Price:            p.Price(),
		Confidence:       p.Confidence,
		DeviationMinutes: p.DeviationMinutes,
		FallbackDays:     p.FallbackDays,
	}
	if p.Found() {
		ts := p.Observation.Timestamp.UTC()
		wp.ObservedAt = &ts
	}
	return wp
}

// normalizeBenchmarks upper-cases, dedupes and drops the primary ticker,
// keeping configured order.
func normalizeBenchmarks(in []string, primary string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{primary: true}
	for _, b := range in {
		b = strings.ToUpper(strings.TrimSpace(b))
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}
