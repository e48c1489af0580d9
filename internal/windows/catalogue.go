// Package windows defines the fixed, ordered catalogue of time windows
// sampled around every event.
package windows

import (
	"fmt"
	"time"

	"event-feature-lab/internal/calendar"
	"event-feature-lab/internal/domain"
)

// Anchor window names.
const (
	DayOpen  = "day_open"
	DayClose = "day_close"
	AtEvent  = "at_event"
)

// Special window names.
const (
	EndOfDay    = "end_of_day"
	NextDayOpen = "next_day_open"
)

// MomentumWindow is the lookback used for 30-day momentum.
const MomentumWindow = "1month_before"

const specialToleranceMinutes = 60

type horizon struct {
	label     string
	minutes   int64
	tolerance int64
}

// horizons is ordered by distance from the event.
var horizons = []horizon{
	{"1min", 1, 2},
	{"5min", 5, 5},
	{"10min", 10, 5},
	{"30min", 30, 10},
	{"1hour", 60, 15},
	{"4hour", 240, 30},
	{"1day", 1440, 60},
	{"1week", 10080, 240},
	{"1month", 43200, 720},
	{"6month", 259200, 1440},
	{"1year", 525600, 2880},
}

var catalogue = buildCatalogue()

var anchors = []domain.TimeWindowSpec{
	{Name: DayOpen, Rule: domain.WindowRuleDayOpen, ToleranceMinutes: 1440, Anchor: true},
	{Name: DayClose, Rule: domain.WindowRuleDayClose, ToleranceMinutes: 1440, Anchor: true},
	{Name: AtEvent, Rule: domain.WindowRuleAtEvent, ToleranceMinutes: 60, Anchor: true},
}

func buildCatalogue() []domain.TimeWindowSpec {
	specs := make([]domain.TimeWindowSpec, 0, 2*len(horizons)+2)
	for _, h := range horizons {
		specs = append(specs, domain.TimeWindowSpec{
			Name:             h.label + "_before",
			Rule:             domain.WindowRuleOffset,
			OffsetMinutes:    -h.minutes,
			ToleranceMinutes: h.tolerance,
		})
	}
	for _, h := range horizons {
		specs = append(specs, domain.TimeWindowSpec{
			Name:             h.label + "_after",
			Rule:             domain.WindowRuleOffset,
			OffsetMinutes:    h.minutes,
			ToleranceMinutes: h.tolerance,
		})
	}
	specs = append(specs,
		domain.TimeWindowSpec{Name: EndOfDay, Rule: domain.WindowRuleEndOfDay, ToleranceMinutes: specialToleranceMinutes},
		domain.TimeWindowSpec{Name: NextDayOpen, Rule: domain.WindowRuleNextDayOpen, ToleranceMinutes: specialToleranceMinutes},
	)
	return specs
}

// Catalogue returns the offset and special windows in stable order.
// The returned slice is a copy.
func Catalogue() []domain.TimeWindowSpec {
	out := make([]domain.TimeWindowSpec, len(catalogue))
	copy(out, catalogue)
	return out
}

// Anchors returns the directly computed anchor windows.
func Anchors() []domain.TimeWindowSpec {
	out := make([]domain.TimeWindowSpec, len(anchors))
	copy(out, anchors)
	return out
}

// All returns the catalogue followed by the anchors.
func All() []domain.TimeWindowSpec {
	return append(Catalogue(), anchors...)
}

// TotalWindows is the number of windows resolved per instrument.
func TotalWindows() int {
	return len(catalogue) + len(anchors)
}

// Lookup returns the spec for a window name.
func Lookup(name string) (domain.TimeWindowSpec, bool) {
	for _, s := range catalogue {
		if s.Name == name {
			return s, true
		}
	}
	for _, s := range anchors {
		if s.Name == name {
			return s, true
		}
	}
	return domain.TimeWindowSpec{}, false
}

// Target resolves a window to the absolute instant it samples.
// Special and anchor rules use exchange clock times, independent of the
// offset carried by eventTS.
func Target(spec domain.TimeWindowSpec, eventTS time.Time, cal *calendar.Calendar) (time.Time, error) {
	switch spec.Rule {
	case domain.WindowRuleOffset:
		return eventTS.Add(time.Duration(spec.OffsetMinutes) * time.Minute).UTC(), nil
	case domain.WindowRuleAtEvent:
		return eventTS.UTC(), nil
	case domain.WindowRuleDayOpen:
		return cal.MarketOpenOn(eventTS).UTC(), nil
	case domain.WindowRuleDayClose, domain.WindowRuleEndOfDay:
		return cal.MarketCloseOn(eventTS).UTC(), nil
	case domain.WindowRuleNextDayOpen:
		return cal.MarketOpenOn(cal.NextTradingDay(eventTS)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unknown window rule %q", spec.Rule)
	}
}

// LengthDays is the intended horizon of a window in days, used to express
// long-window deviation as a share of the horizon.
func LengthDays(spec domain.TimeWindowSpec) float64 {
	if spec.Rule == domain.WindowRuleOffset {
		m := spec.OffsetMinutes
		if m < 0 {
			m = -m
		}
		return float64(m) / 1440
	}
	return float64(spec.ToleranceMinutes) / 1440
}

// IsBefore reports whether the window samples a price before the event.
func IsBefore(spec domain.TimeWindowSpec) bool {
	return spec.Rule == domain.WindowRuleOffset && spec.OffsetMinutes < 0
}
