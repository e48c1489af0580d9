package metrics

import "event-feature-lab/internal/domain"

// Regime thresholds on 30-day momentum, in percent.
const (
	BullThreshold = 5.0
	BearThreshold = -5.0
)

// ClassifyRegime labels momentum as bull, bear or sideways.
// Missing momentum is unknown.
func ClassifyRegime(momentum *float64) domain.Regime {
	switch {
	case momentum == nil:
		return domain.RegimeUnknown
	case *momentum > BullThreshold:
		return domain.RegimeBull
	case *momentum < BearThreshold:
		return domain.RegimeBear
	default:
		return domain.RegimeSideways
	}
}

// Regimes classifies every entry of a momentum map.
func Regimes(momentum map[string]*float64) map[string]domain.Regime {
	out := make(map[string]domain.Regime, len(momentum))
	for t, m := range momentum {
		out[t] = ClassifyRegime(m)
	}
	return out
}
