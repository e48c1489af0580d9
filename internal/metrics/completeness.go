package metrics

import (
	"sort"

	"event-feature-lab/internal/domain"
)

// Quality summarizes how completely an event's windows were resolved.
type Quality struct {
	Completeness         float64
	MissingWindows       []string
	ApproximationQuality map[string]domain.ApproximationDetail
}

// ScoreCompleteness scores points against the expected window count.
// A window counts as successful when it has a price, whatever its
// confidence. Approximated windows are reported with their drift.
func ScoreCompleteness(points map[string]*domain.ResolvedPoint, totalWindows int) Quality {
	q := Quality{
		MissingWindows:       []string{},
		ApproximationQuality: make(map[string]domain.ApproximationDetail),
	}

	successful := 0
	for key, p := range points {
		if !p.Found() {
			q.MissingWindows = append(q.MissingWindows, key)
			continue
		}
		successful++
		if p.Approximated() {
			q.ApproximationQuality[key] = domain.ApproximationDetail{
				DeviationMinutes:    p.DeviationMinutes,
				FallbackDays:        p.FallbackDays,
				Confidence:          p.Confidence,
				PercentageDeviation: p.PercentageDeviation,
			}
		}
	}
	sort.Strings(q.MissingWindows)

	if totalWindows > 0 {
		if successful > totalWindows {
			successful = totalWindows
		}
		q.Completeness = float64(successful) / float64(totalWindows)
	}
	return q
}
