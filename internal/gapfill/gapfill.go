// Package gapfill forward-fills missing minute bars inside regular sessions.
package gapfill

import (
	"sort"
	"time"

	"event-feature-lab/internal/domain"
)

// SortObservations orders observations by (timestamp ASC, source ASC).
func SortObservations(obs []*domain.PriceObservation) {
	sort.Slice(obs, func(i, j int) bool {
		return compareObservations(obs[i], obs[j]) < 0
	})
}

// compareObservations returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareObservations(a, b *domain.PriceObservation) int {
	if !a.Timestamp.Equal(b.Timestamp) {
		if a.Timestamp.Before(b.Timestamp) {
			return -1
		}
		return 1
	}
	if a.Source != b.Source {
		if a.Source < b.Source {
			return -1
		}
		return 1
	}
	return 0
}

// GenerateFills returns interpolated 1m bars for every minute in [open, end)
// that has no bar, carrying forward the close of the last raw bar.
// Minutes before the first raw bar stay empty. obs must be sorted.
func GenerateFills(ticker string, obs []*domain.PriceObservation, open, end time.Time) []*domain.PriceObservation {
	present := make(map[int64]struct{}, len(obs))
	for _, o := range obs {
		if o.Timeframe == domain.Timeframe1Min {
			present[o.Timestamp.UnixMilli()] = struct{}{}
		}
	}

	var (
		fills []*domain.PriceObservation
		last  *domain.PriceObservation
		next  int
	)
	for m := open; m.Before(end); m = m.Add(time.Minute) {
		for next < len(obs) && !obs[next].Timestamp.After(m) {
			if obs[next].Source == domain.ProvenanceRaw && obs[next].Timeframe == domain.Timeframe1Min {
				last = obs[next]
			}
			next++
		}
		if _, ok := present[m.UnixMilli()]; ok || last == nil {
			continue
		}
		fills = append(fills, &domain.PriceObservation{
			Ticker:    ticker,
			Timestamp: m.UTC(),
			Timeframe: domain.Timeframe1Min,
			Open:      last.Close,
			High:      last.Close,
			Low:       last.Close,
			Close:     last.Close,
			Volume:    0,
			Source:    domain.ProvenanceInterpolated,
		})
	}
	return fills
}
