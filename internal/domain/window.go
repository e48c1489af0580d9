package domain

import "time"

// WindowRule selects how a window's absolute target time is computed.
type WindowRule string

const (
	WindowRuleOffset      WindowRule = "offset"        // signed minute offset from event
	WindowRuleEndOfDay    WindowRule = "end_of_day"    // event-day market close
	WindowRuleNextDayOpen WindowRule = "next_day_open" // next session market open
	WindowRuleDayOpen     WindowRule = "day_open"      // event-day market open
	WindowRuleDayClose    WindowRule = "day_close"     // event-day market close
	WindowRuleAtEvent     WindowRule = "at_event"      // the event timestamp itself
)

// TimeWindowSpec names a relative time window and its resolution rule.
type TimeWindowSpec struct {
	Name             string     // e.g. 1hour_before
	Rule             WindowRule // resolution rule
	OffsetMinutes    int64      // signed offset, only for WindowRuleOffset
	ToleranceMinutes int64      // base nearest-search tolerance
	Anchor           bool       // computed directly, not via the offset path
}

// ResolvedPoint is the outcome of a nearest-price search.
// Observation is nil when no acceptable observation was found; in that case
// Confidence is 0 and the window is reported missing.
type ResolvedPoint struct {
	Ticker              string
	Window              string
	Target              time.Time
	Observation         *PriceObservation
	Confidence          float64 // [0,1], 1.0 = exact match
	DeviationMinutes    float64 // |observation - clock-aligned target|
	FallbackDays        int     // calendar days the search moved forward
	PercentageDeviation float64 // diagnostic only
}

// Found reports whether the point carries an observation.
func (p *ResolvedPoint) Found() bool {
	return p != nil && p.Observation != nil
}

// Approximated reports whether the point needed a non-exact match.
func (p *ResolvedPoint) Approximated() bool {
	return p.Found() && (p.DeviationMinutes > 0 || p.FallbackDays > 0)
}

// Price returns the close of the observation, or nil when missing.
func (p *ResolvedPoint) Price() *float64 {
	if !p.Found() {
		return nil
	}
	v := p.Observation.Close
	return &v
}
