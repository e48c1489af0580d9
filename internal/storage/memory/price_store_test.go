package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage"
)

func bar(ticker string, ts time.Time, price float64, src domain.Provenance) *domain.PriceObservation {
	return &domain.PriceObservation{
		Ticker:    ticker,
		Timestamp: ts,
		Timeframe: domain.Timeframe1Min,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    100,
		Source:    src,
	}
}

func TestPriceStore_UpsertAndQuery(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 13, 30, 0, 0, time.UTC)

	obs := []*domain.PriceObservation{
		bar("AAPL", base.Add(2*time.Minute), 102, domain.ProvenanceRaw),
		bar("AAPL", base, 100, domain.ProvenanceRaw),
		bar("AAPL", base.Add(time.Minute), 101, domain.ProvenanceRaw),
		bar("SPY", base, 500, domain.ProvenanceRaw),
	}

	n, err := store.Upsert(ctx, obs, false)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 written, got %d", n)
	}

	got, err := store.Query(ctx, "aapl", base, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 observations (end exclusive), got %d", len(got))
	}
	if got[0].Close != 100 || got[1].Close != 101 {
		t.Errorf("expected ascending order, got %v then %v", got[0].Close, got[1].Close)
	}
}

func TestPriceStore_UpsertOverwrite(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	ts := time.Date(2024, 7, 1, 13, 30, 0, 0, time.UTC)

	if _, err := store.Upsert(ctx, []*domain.PriceObservation{bar("AAPL", ts, 100, domain.ProvenanceRaw)}, false); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	n, _ := store.Upsert(ctx, []*domain.PriceObservation{bar("AAPL", ts, 200, domain.ProvenanceRaw)}, false)
	if n != 0 {
		t.Errorf("expected existing key to be kept, wrote %d", n)
	}
	got, _ := store.Query(ctx, "AAPL", ts, ts.Add(time.Minute))
	if got[0].Close != 100 {
		t.Errorf("expected 100 after non-overwrite upsert, got %v", got[0].Close)
	}

	n, _ = store.Upsert(ctx, []*domain.PriceObservation{bar("AAPL", ts, 200, domain.ProvenanceRaw)}, true)
	if n != 1 {
		t.Errorf("expected overwrite to write 1, wrote %d", n)
	}
	got, _ = store.Query(ctx, "AAPL", ts, ts.Add(time.Minute))
	if got[0].Close != 200 {
		t.Errorf("expected 200 after overwrite, got %v", got[0].Close)
	}
}

func TestPriceStore_ProvenanceIsPartOfKey(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	ts := time.Date(2024, 7, 1, 13, 30, 0, 0, time.UTC)

	obs := []*domain.PriceObservation{
		bar("AAPL", ts, 100, domain.ProvenanceRaw),
		bar("AAPL", ts, 99, domain.ProvenanceInterpolated),
	}
	if _, err := store.Upsert(ctx, obs, false); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", store.Len())
	}
}

func TestPriceStore_InvalidInput(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	ts := time.Date(2024, 7, 1, 13, 30, 0, 0, time.UTC)

	obs := []*domain.PriceObservation{
		bar("AAPL", ts, 100, domain.ProvenanceRaw),
		bar("", ts, 100, domain.ProvenanceRaw),
	}
	_, err := store.Upsert(ctx, obs, false)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected nothing written on invalid batch, got %d", store.Len())
	}
}

func TestPriceStore_CountInRange(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 13, 30, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		store.Upsert(ctx, []*domain.PriceObservation{bar("AAPL", base.Add(time.Duration(i)*time.Minute), 100, domain.ProvenanceRaw)}, false)
	}

	n, err := store.CountInRange(ctx, "AAPL", base, base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("CountInRange failed: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5, got %d", n)
	}
}

func TestPriceStore_QueryCancelled(t *testing.T) {
	store := NewPriceStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Query(ctx, "AAPL", time.Time{}, time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
