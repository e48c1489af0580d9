package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage/memory"
)

var (
	dayStart = time.Date(2024, 7, 10, 4, 0, 0, 0, time.UTC)
	dayEnd   = dayStart.Add(24 * time.Hour)
)

func seeded(t *testing.T) *memory.PriceStore {
	t.Helper()
	inner := memory.NewPriceStore()
	_, err := inner.Upsert(context.Background(), []*domain.PriceObservation{{
		Ticker:    "AAPL",
		Timestamp: dayStart.Add(10 * time.Hour),
		Timeframe: domain.Timeframe1Min,
		Close:     101,
		Source:    domain.ProvenanceRaw,
	}}, false)
	require.NoError(t, err)
	return inner
}

func TestPriceStore_MissFillsCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := seeded(t)
	store := New(inner, db, Options{TTL: time.Hour})
	ctx := context.Background()

	want, err := inner.Query(ctx, "AAPL", dayStart, dayEnd)
	require.NoError(t, err)
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	key := store.queryKey("AAPL", dayStart, dayEnd)
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, payload, time.Hour).SetVal("OK")
	mock.ExpectSAdd(store.indexKey("AAPL"), key).SetVal(1)

	got, err := store.Query(ctx, "aapl", dayStart, dayEnd)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 101.0, got[0].Close)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceStore_HitSkipsInner(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(memory.NewPriceStore(), db, Options{})

	cached := []*domain.PriceObservation{{
		Ticker:    "AAPL",
		Timestamp: dayStart.Add(time.Hour),
		Timeframe: domain.Timeframe1Min,
		Close:     55,
		Source:    domain.ProvenanceInterpolated,
	}}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	key := store.queryKey("AAPL", dayStart, dayEnd)
	mock.ExpectGet(key).SetVal(string(payload))

	got, err := store.Query(context.Background(), "AAPL", dayStart, dayEnd)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 55.0, got[0].Close)
	assert.True(t, got[0].Timestamp.Equal(cached[0].Timestamp))
	assert.Equal(t, domain.ProvenanceInterpolated, got[0].Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceStore_RedisErrorFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := seeded(t)
	store := New(inner, db, Options{TTL: time.Minute})

	want, err := inner.Query(context.Background(), "AAPL", dayStart, dayEnd)
	require.NoError(t, err)
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	key := store.queryKey("AAPL", dayStart, dayEnd)
	mock.ExpectGet(key).SetErr(redis.TxFailedErr)
	mock.ExpectSet(key, payload, time.Minute).SetErr(redis.TxFailedErr)

	got, err := store.Query(context.Background(), "AAPL", dayStart, dayEnd)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceStore_UpsertInvalidates(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(memory.NewPriceStore(), db, Options{})

	idx := store.indexKey("SPY")
	cachedKey := store.queryKey("SPY", dayStart, dayEnd)
	mock.ExpectSMembers(idx).SetVal([]string{cachedKey})
	mock.ExpectDel(cachedKey, idx).SetVal(2)

	n, err := store.Upsert(context.Background(), []*domain.PriceObservation{
		{Ticker: "spy", Timestamp: dayStart, Timeframe: domain.Timeframe1Min, Close: 500, Source: domain.ProvenanceRaw},
		{Ticker: "SPY", Timestamp: dayStart.Add(time.Minute), Timeframe: domain.Timeframe1Min, Close: 501, Source: domain.ProvenanceRaw},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceStore_UpsertNothingWrittenKeepsCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(memory.NewPriceStore(), db, Options{})

	n, err := store.Upsert(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceStore_CountDelegates(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(seeded(t), db, Options{})

	n, err := store.CountInRange(context.Background(), "AAPL", dayStart, dayEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
