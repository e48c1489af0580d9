// Package metrics derives percentage changes, alpha, momentum and
// completeness from resolved window prices.
package metrics

import (
	"strings"

	"event-feature-lab/internal/windows"
)

// Derived horizons that are not window names.
const (
	DayChange    = "day_change"
	OvernightGap = "overnight_gap"
)

// WindowPrices maps window name to price for one instrument; nil means missing.
type WindowPrices map[string]*float64

// PercentChange returns (to - from) / from * 100.
// Returns nil when a leg is missing or from is zero.
func PercentChange(from, to *float64) *float64 {
	if from == nil || to == nil || *from == 0 {
		return nil
	}
	v := (*to - *from) / *from * 100
	return &v
}

// ChangeHorizons returns the keys produced by Changes, in catalogue order.
func ChangeHorizons() []string {
	var out []string
	for _, s := range windows.Catalogue() {
		if s.Name == windows.NextDayOpen {
			continue
		}
		out = append(out, s.Name)
	}
	return append(out, DayChange, OvernightGap)
}

// Changes computes every percentage-change horizon for one instrument.
// Before-windows measure the move into the event, after-windows and
// end_of_day the move out of it.
func Changes(prices WindowPrices) map[string]*float64 {
	atEvent := prices[windows.AtEvent]
	out := make(map[string]*float64)

	for _, s := range windows.Catalogue() {
		switch {
		case s.Name == windows.NextDayOpen:
			continue
		case windows.IsBefore(s):
			out[s.Name] = PercentChange(prices[s.Name], atEvent)
		default:
			out[s.Name] = PercentChange(atEvent, prices[s.Name])
		}
	}
	out[DayChange] = PercentChange(prices[windows.DayOpen], prices[windows.DayClose])
	out[OvernightGap] = PercentChange(prices[windows.DayClose], prices[windows.NextDayOpen])
	return out
}

// Momentum is the 30-day change leading into the event.
func Momentum(prices WindowPrices) *float64 {
	return PercentChange(prices[windows.MomentumWindow], prices[windows.AtEvent])
}

// BenchmarkKey is the feature key of a benchmark window.
func BenchmarkKey(ticker, window string) string {
	return strings.ToUpper(ticker) + ":" + window
}
