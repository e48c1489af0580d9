// Package lookup resolves window targets to stored price observations.
package lookup

import (
	"errors"
	"time"

	"event-feature-lab/internal/domain"
)

// ErrNoPriceData is returned when there is nothing to search.
var ErrNoPriceData = errors.New("no price data available")

// Nearest returns the observation closest to target and its distance.
// Ties break by earlier timestamp, then raw provenance, then source and
// timeframe, so the result does not depend on slice order.
// Returns ErrNoPriceData if obs is empty.
func Nearest(target time.Time, obs []*domain.PriceObservation) (*domain.PriceObservation, time.Duration, error) {
	var best *domain.PriceObservation
	var bestDist time.Duration

	for _, o := range obs {
		if o == nil {
			continue
		}
		dist := absDuration(o.Timestamp.Sub(target))
		if best == nil || dist < bestDist || (dist == bestDist && preferred(o, best)) {
			best = o
			bestDist = dist
		}
	}

	if best == nil {
		return nil, 0, ErrNoPriceData
	}
	return best, bestDist, nil
}

// preferred reports whether a wins a distance tie against b.
func preferred(a, b *domain.PriceObservation) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	aRaw := a.Source == domain.ProvenanceRaw
	bRaw := b.Source == domain.ProvenanceRaw
	if aRaw != bRaw {
		return aRaw
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.Timeframe < b.Timeframe
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
