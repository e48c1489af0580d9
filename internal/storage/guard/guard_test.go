package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage/memory"
)

var errBackend = errors.New("backend down")

type flakyStore struct {
	*memory.PriceStore
	fail  bool
	calls int
}

func (f *flakyStore) Query(ctx context.Context, ticker string, start, end time.Time) ([]*domain.PriceObservation, error) {
	f.calls++
	if f.fail {
		return nil, errBackend
	}
	return f.PriceStore.Query(ctx, ticker, start, end)
}

var day = time.Date(2024, 7, 10, 4, 0, 0, 0, time.UTC)

func TestGuard_PassesThrough(t *testing.T) {
	inner := memory.NewPriceStore()
	_, err := inner.Upsert(context.Background(), []*domain.PriceObservation{{
		Ticker: "AAPL", Timestamp: day.Add(6 * time.Hour), Timeframe: domain.Timeframe1Min,
		Close: 10, Source: domain.ProvenanceRaw,
	}}, false)
	require.NoError(t, err)

	g := New(inner, Options{})
	got, err := g.Query(context.Background(), "AAPL", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	n, err := g.CountInRange(context.Background(), "AAPL", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGuard_BreakerOpensAfterThreshold(t *testing.T) {
	inner := &flakyStore{PriceStore: memory.NewPriceStore(), fail: true}
	g := New(inner, Options{FailureThreshold: 3, OpenTimeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := g.Query(ctx, "AAPL", day, day.Add(time.Hour))
		assert.ErrorIs(t, err, errBackend)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Query(ctx, "AAPL", day, day.Add(time.Hour))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, inner.calls, "open breaker must not reach the store")
}

func TestGuard_CancellationDoesNotTrip(t *testing.T) {
	inner := &flakyStore{PriceStore: memory.NewPriceStore()}
	g := New(inner, Options{FailureThreshold: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Query(ctx, "AAPL", day, day.Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuard_RateLimitHonoursContext(t *testing.T) {
	g := New(memory.NewPriceStore(), Options{RequestsPerSec: 0.001, Burst: 1})
	ctx := context.Background()

	_, err := g.Query(ctx, "AAPL", day, day.Add(time.Hour))
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = g.Query(short, "AAPL", day, day.Add(time.Hour))
	assert.Error(t, err)
}

func TestGuard_UpsertBypassesBreaker(t *testing.T) {
	inner := &flakyStore{PriceStore: memory.NewPriceStore(), fail: true}
	g := New(inner, Options{FailureThreshold: 1, OpenTimeout: time.Hour})

	_, _ = g.Query(context.Background(), "AAPL", day, day.Add(time.Hour))
	require.Equal(t, gobreaker.StateOpen, g.State())

	n, err := g.Upsert(context.Background(), []*domain.PriceObservation{{
		Ticker: "AAPL", Timestamp: day, Timeframe: domain.Timeframe1Min, Close: 1, Source: domain.ProvenanceRaw,
	}}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
