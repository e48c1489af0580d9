package lookup

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"event-feature-lab/internal/calendar"
	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/observability"
	"event-feature-lab/internal/storage"
	"event-feature-lab/internal/windows"
)

// Resolver defaults.
const (
	DefaultMaxFallbackDays = 5
	DefaultReadTimeout     = 10 * time.Second
)

// shortWindowTolerance is the largest tolerance whose deviation is reported
// relative to the tolerance rather than the window length.
const shortWindowTolerance = 60

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	Calendar        *calendar.Calendar // defaults to NYSE
	MaxFallbackDays int                // days searched after the target day
	ReadTimeout     time.Duration      // per store read
	Logger          zerolog.Logger
}

// Resolver finds the observation nearest to a target instant, falling back
// across later calendar days when the target day has no usable data.
// Each call keeps its search state local, so a Resolver is safe for
// concurrent use.
type Resolver struct {
	store           storage.PriceStore
	cal             *calendar.Calendar
	maxFallbackDays int
	readTimeout     time.Duration
	logger          zerolog.Logger
}

// NewResolver creates a Resolver reading from store.
func NewResolver(store storage.PriceStore, opts ResolverOptions) *Resolver {
	cal := opts.Calendar
	if cal == nil {
		cal = calendar.NYSE()
	}
	maxDays := opts.MaxFallbackDays
	if maxDays <= 0 {
		maxDays = DefaultMaxFallbackDays
	}
	timeout := opts.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	return &Resolver{
		store:           store,
		cal:             cal,
		maxFallbackDays: maxDays,
		readTimeout:     timeout,
		logger:          opts.Logger,
	}
}

// Calendar returns the trading calendar the resolver searches with.
func (r *Resolver) Calendar() *calendar.Calendar {
	return r.cal
}

// Resolve searches for the observation of ticker nearest to target.
// The returned point is never nil; it has no Observation when nothing
// within tolerance was found.
func (r *Resolver) Resolve(ctx context.Context, ticker string, target time.Time, toleranceMinutes int64) *domain.ResolvedPoint {
	return r.resolve(ctx, ticker, "", target, toleranceMinutes, float64(toleranceMinutes)/1440)
}

// ResolveWindow resolves spec relative to the event instant.
func (r *Resolver) ResolveWindow(ctx context.Context, ticker string, spec domain.TimeWindowSpec, eventTS time.Time) *domain.ResolvedPoint {
	target, err := windows.Target(spec, eventTS, r.cal)
	if err != nil {
		r.logger.Error().Err(err).Str("window", spec.Name).Msg("cannot compute window target")
		return &domain.ResolvedPoint{Ticker: ticker, Window: spec.Name}
	}
	return r.resolve(ctx, ticker, spec.Name, target, spec.ToleranceMinutes, windows.LengthDays(spec))
}

func (r *Resolver) resolve(ctx context.Context, ticker, window string, target time.Time, tol int64, windowDays float64) *domain.ResolvedPoint {
	point := &domain.ResolvedPoint{Ticker: ticker, Window: window, Target: target}
	if tol < 1 {
		tol = 1
	}
	log := r.logger.With().Str("ticker", ticker).Str("window", window).Time("target", target).Logger()

	for d := 0; d <= r.maxFallbackDays; d++ {
		if ctx.Err() != nil {
			log.Debug().Err(ctx.Err()).Msg("resolution abandoned")
			break
		}

		candidate := r.cal.AddDays(target, d)
		if !r.cal.IsTradingDay(candidate) {
			continue
		}

		obs, err := r.readDay(ctx, ticker, candidate)
		if err != nil {
			log.Warn().Err(err).Int("fallback_days", d).Msg("price read failed, window treated as missing")
			break
		}
		if len(obs) == 0 {
			continue
		}

		best, dist, err := Nearest(r.searchTarget(candidate, d), obs)
		if err != nil {
			continue
		}
		dev := dist.Minutes()
		if dev > float64(tol)*float64(d+1) {
			continue
		}

		point.Observation = best
		point.DeviationMinutes = dev
		point.FallbackDays = d
		point.Confidence = confidence(dev, d, tol, r.maxFallbackDays)
		point.PercentageDeviation = percentageDeviation(dev, d, tol, windowDays)
		observability.RecordWindow(outcome(point), d)
		return point
	}

	log.Debug().Msg("no observation within tolerance")
	observability.RecordWindow("missing", 0)
	return point
}

// searchTarget is the instant deviation is measured from on day offset d.
// Fallback days clamp the clock-aligned target into the regular session,
// so a pre-market or overnight target still matches session-only data.
func (r *Resolver) searchTarget(candidate time.Time, d int) time.Time {
	if d == 0 {
		return candidate
	}
	if open := r.cal.MarketOpenOn(candidate); candidate.Before(open) {
		return open
	}
	if closeAt := r.cal.MarketCloseOn(candidate); candidate.After(closeAt) {
		return closeAt
	}
	return candidate
}

// readDay loads the exchange-local calendar day containing ts under its own timeout.
func (r *Resolver) readDay(ctx context.Context, ticker string, ts time.Time) ([]*domain.PriceObservation, error) {
	start, end := r.cal.DayBounds(ts)

	readCtx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	began := time.Now()
	obs, err := r.store.Query(readCtx, ticker, start, end)
	observability.RecordStoreRead("price", "query", time.Since(began).Seconds(), err)
	return obs, err
}

// confidence decays linearly with the combined cost dev + d*tol over the
// full search budget. It is 1 only for an exact same-day match.
//
// Charging tol per fallback day keeps the score ordered by total cost: a
// per-day budget of dev/(tol*(d+1)) would rate an exact Monday match for a
// weekend event at 1.0, above a same-day match a few minutes off.
func confidence(dev float64, d int, tol int64, maxDays int) float64 {
	budget := float64(tol) * float64(maxDays+1)
	c := 1 - (dev+float64(d)*float64(tol))/budget
	return math.Max(0, c)
}

func percentageDeviation(dev float64, d int, tol int64, windowDays float64) float64 {
	if tol <= shortWindowTolerance {
		return dev / float64(tol) * 100
	}
	if windowDays <= 0 {
		return 0
	}
	return (dev/1440 + float64(d)) / windowDays * 100
}

func outcome(p *domain.ResolvedPoint) string {
	if p.Approximated() {
		return "approximated"
	}
	return "exact"
}
