package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage"
)

func newRecord(id, ticker string, ts time.Time) *domain.FeatureRecord {
	return &domain.FeatureRecord{
		EventID:        id,
		Ticker:         ticker,
		EventTimestamp: ts,
		Event:          domain.Event{EventID: id, Ticker: ticker, Timestamp: ts},
		Benchmarks:     []string{"SPY"},
		Windows: map[string]domain.WindowPrice{
			"at_event": {Ticker: ticker, Window: "at_event", Price: ptr(101.5), Confidence: 1},
		},
		PriceChanges:   map[string]map[string]*float64{ticker: {"1hour": ptr(1.5), "1day": nil}},
		Momentum:       map[string]*float64{"SPY": ptr(6.2)},
		Regime:         map[string]domain.Regime{"SPY": domain.RegimeBull},
		Completeness:   0.5,
		MissingWindows: []string{"SPY:at_event"},
		Status:         domain.RecordStatusCompleted,
	}
}

func TestFeatureStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFeatureStore(pool)
	ctx := context.Background()
	base := time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC)

	rec := newRecord("evt-1", "AAPL", base)

	t.Run("insert and get", func(t *testing.T) {
		wrote, err := store.Upsert(ctx, rec, false)
		require.NoError(t, err)
		assert.True(t, wrote)

		got, err := store.Get(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", got.Ticker)
		assert.True(t, got.EventTimestamp.Equal(base))
		assert.Equal(t, 0.5, got.Completeness)
		assert.Equal(t, []string{"SPY:at_event"}, got.MissingWindows)
		require.NotNil(t, got.Windows["at_event"].Price)
		assert.Equal(t, 101.5, *got.Windows["at_event"].Price)
		assert.Nil(t, got.PriceChanges["AAPL"]["1day"])
		assert.Equal(t, domain.RegimeBull, got.Regime["SPY"])
	})

	t.Run("no overwrite keeps existing", func(t *testing.T) {
		changed := newRecord("evt-1", "AAPL", base)
		changed.Completeness = 1
		wrote, err := store.Upsert(ctx, changed, false)
		require.NoError(t, err)
		assert.False(t, wrote)

		got, err := store.Get(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, 0.5, got.Completeness)
	})

	t.Run("overwrite replaces", func(t *testing.T) {
		failed := newRecord("evt-1", "AAPL", base)
		failed.Status = domain.RecordStatusFailed
		failed.Completeness = 0
		failed.Error = "no coverage"
		wrote, err := store.Upsert(ctx, failed, true)
		require.NoError(t, err)
		assert.True(t, wrote)

		got, err := store.Get(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RecordStatusFailed, got.Status)
		assert.Equal(t, "no coverage", got.Error)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := store.Exists(ctx, "evt-1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list ordered and filtered", func(t *testing.T) {
		_, err := store.Upsert(ctx, newRecord("evt-0", "MSFT", base), false)
		require.NoError(t, err)
		_, err = store.Upsert(ctx, newRecord("evt-2", "AAPL", base.Add(-time.Hour)), false)
		require.NoError(t, err)

		all, err := store.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "evt-2", all[0].EventID)
		assert.Equal(t, "evt-0", all[1].EventID)
		assert.Equal(t, "evt-1", all[2].EventID)

		aapl, err := store.List(ctx, "AAPL")
		require.NoError(t, err)
		assert.Len(t, aapl, 2)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := store.Upsert(ctx, &domain.FeatureRecord{}, true)
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
	})
}
