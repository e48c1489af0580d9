// Package guard throttles and circuit-breaks reads against a PriceStore.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/observability"
	"event-feature-lab/internal/storage"
)

// ErrUnavailable wraps reads rejected by an open breaker.
var ErrUnavailable = errors.New("price store unavailable")

// Options configures PriceStore.
type Options struct {
	Name             string
	RequestsPerSec   float64 // <= 0 disables throttling
	Burst            int
	FailureThreshold uint32 // consecutive failures that open the breaker
	OpenTimeout      time.Duration
	Logger           zerolog.Logger
}

// PriceStore rate-limits and circuit-breaks Query and CountInRange.
// Upsert bypasses both.
type PriceStore struct {
	inner   storage.PriceStore
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

var (
	_ storage.PriceStore   = (*PriceStore)(nil)
	_ storage.PriceCounter = (*PriceStore)(nil)
)

// New wraps inner.
func New(inner storage.PriceStore, opts Options) *PriceStore {
	if opts.Name == "" {
		opts.Name = "price-store"
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), burst)
	}

	log := opts.Logger
	threshold := opts.FailureThreshold
	st := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Caller cancellation says nothing about store health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}

	return &PriceStore{
		inner:   inner,
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// State returns the breaker state.
func (s *PriceStore) State() gobreaker.State {
	return s.breaker.State()
}

// Query implements storage.PriceStore.
func (s *PriceStore) Query(ctx context.Context, ticker string, start, end time.Time) ([]*domain.PriceObservation, error) {
	res, err := s.do(ctx, func() (interface{}, error) {
		return s.inner.Query(ctx, ticker, start, end)
	})
	if err != nil {
		return nil, err
	}
	return res.([]*domain.PriceObservation), nil
}

// CountInRange implements storage.PriceCounter, falling back to Query when
// the inner store cannot count.
func (s *PriceStore) CountInRange(ctx context.Context, ticker string, start, end time.Time) (int, error) {
	res, err := s.do(ctx, func() (interface{}, error) {
		if counter, ok := s.inner.(storage.PriceCounter); ok {
			return counter.CountInRange(ctx, ticker, start, end)
		}
		obs, err := s.inner.Query(ctx, ticker, start, end)
		return len(obs), err
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

// Upsert implements storage.PriceStore.
func (s *PriceStore) Upsert(ctx context.Context, obs []*domain.PriceObservation, overwrite bool) (int, error) {
	return s.inner.Upsert(ctx, obs, overwrite)
}

func (s *PriceStore) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			observability.RecordGuardRejection("rate_limit")
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	res, err := s.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.RecordGuardRejection("breaker_open")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, err
}
