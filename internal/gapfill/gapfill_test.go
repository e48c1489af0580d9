package gapfill

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-feature-lab/internal/calendar"
	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage/memory"
)

// 2024-07-10 09:30 EDT
var sessionOpen = time.Date(2024, 7, 10, 13, 30, 0, 0, time.UTC)

func minuteBar(offset int, price float64, source domain.Provenance) *domain.PriceObservation {
	return &domain.PriceObservation{
		Ticker:    "AAPL",
		Timestamp: sessionOpen.Add(time.Duration(offset) * time.Minute),
		Timeframe: domain.Timeframe1Min,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    10,
		Source:    source,
	}
}

func TestGenerateFills(t *testing.T) {
	tests := []struct {
		name   string
		obs    []*domain.PriceObservation
		end    int
		want   []int
		wantPx []float64
	}{
		{
			name: "no bars",
			end:  5,
		},
		{
			name:   "gap carries last close",
			obs:    []*domain.PriceObservation{minuteBar(0, 10, domain.ProvenanceRaw), minuteBar(3, 13, domain.ProvenanceRaw)},
			end:    5,
			want:   []int{1, 2, 4},
			wantPx: []float64{10, 10, 13},
		},
		{
			name:   "leading minutes stay empty",
			obs:    []*domain.PriceObservation{minuteBar(2, 12, domain.ProvenanceRaw)},
			end:    4,
			want:   []int{3},
			wantPx: []float64{12},
		},
		{
			name: "interpolated bar occupies its minute but is not carried",
			obs: []*domain.PriceObservation{
				minuteBar(0, 10, domain.ProvenanceRaw),
				minuteBar(1, 99, domain.ProvenanceInterpolated),
			},
			end:    3,
			want:   []int{2},
			wantPx: []float64{10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fills := GenerateFills("AAPL", tt.obs, sessionOpen, sessionOpen.Add(time.Duration(tt.end)*time.Minute))
			require.Len(t, fills, len(tt.want))
			for i, f := range fills {
				assert.True(t, f.Timestamp.Equal(sessionOpen.Add(time.Duration(tt.want[i])*time.Minute)))
				assert.Equal(t, tt.wantPx[i], f.Close)
				assert.Equal(t, domain.ProvenanceInterpolated, f.Source)
				assert.Zero(t, f.Volume)
			}
		})
	}
}

func TestSortObservations(t *testing.T) {
	obs := []*domain.PriceObservation{
		minuteBar(1, 1, domain.ProvenanceRaw),
		minuteBar(0, 1, domain.ProvenanceRaw),
		minuteBar(0, 1, domain.ProvenanceInterpolated),
	}
	SortObservations(obs)
	assert.Equal(t, domain.ProvenanceInterpolated, obs[0].Source)
	assert.Equal(t, domain.ProvenanceRaw, obs[1].Source)
	assert.True(t, obs[2].Timestamp.After(obs[1].Timestamp))
}

func TestRunner_FillDay(t *testing.T) {
	store := memory.NewPriceStore()
	ctx := context.Background()
	_, err := store.Upsert(ctx, []*domain.PriceObservation{
		minuteBar(0, 100, domain.ProvenanceRaw),
		minuteBar(389, 105, domain.ProvenanceRaw), // 15:59
	}, false)
	require.NoError(t, err)

	r := NewRunner(store, calendar.NYSE(), zerolog.Nop())
	res, err := r.FillDay(ctx, "aapl", sessionOpen)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Days)
	assert.Equal(t, 2, res.Bars)
	assert.Equal(t, 388, res.Written)
	assert.Equal(t, 390, store.Len())

	// Second pass finds nothing to fill.
	res, err = r.FillDay(ctx, "AAPL", sessionOpen)
	require.NoError(t, err)
	assert.Zero(t, res.Written)
	assert.Equal(t, 390, store.Len())
}

func TestRunner_FillRangeSkipsClosedDays(t *testing.T) {
	store := memory.NewPriceStore()
	ctx := context.Background()

	// Wed 2024-07-03 and Fri 2024-07-05 around the Independence Day holiday.
	wed := time.Date(2024, 7, 3, 13, 30, 0, 0, time.UTC)
	fri := time.Date(2024, 7, 5, 13, 30, 0, 0, time.UTC)
	_, err := store.Upsert(ctx, []*domain.PriceObservation{
		{Ticker: "AAPL", Timestamp: wed, Timeframe: domain.Timeframe1Min, Close: 1, Source: domain.ProvenanceRaw},
		{Ticker: "AAPL", Timestamp: fri, Timeframe: domain.Timeframe1Min, Close: 2, Source: domain.ProvenanceRaw},
	}, false)
	require.NoError(t, err)

	r := NewRunner(store, nil, zerolog.Nop())
	res, err := r.FillRange(ctx, "AAPL", wed, time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Days)
	assert.Equal(t, 2*389, res.Written)

	holiday, err := store.Query(ctx, "AAPL", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, holiday)
}

func TestRunner_FillDayNonTradingDay(t *testing.T) {
	r := NewRunner(memory.NewPriceStore(), calendar.NYSE(), zerolog.Nop())
	res, err := r.FillDay(context.Background(), "AAPL", time.Date(2024, 7, 6, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}
