package domain

import "time"

// RecordStatus is the terminal state of a feature record.
type RecordStatus string

const (
	RecordStatusCompleted RecordStatus = "completed"
	RecordStatusFailed    RecordStatus = "failed"
)

// Regime classifies 30-day benchmark momentum.
type Regime string

const (
	RegimeBull     Regime = "bull"
	RegimeBear     Regime = "bear"
	RegimeSideways Regime = "sideways"
	RegimeUnknown  Regime = "unknown"
)

// Session is the calendar classification of an instant.
type Session string

const (
	SessionMarketOpen    Session = "market_open"
	SessionExtendedHours Session = "extended_hours"
	SessionAfterHours    Session = "after_hours"
	SessionWeekend       Session = "weekend"
	SessionHoliday       Session = "holiday"
)

// WindowPrice is the persisted resolution of one window for one instrument.
type WindowPrice struct {
	Ticker           string     `json:"ticker"`
	Window           string     `json:"window"`
	Price            *float64   `json:"price"`
	ObservedAt       *time.Time `json:"observed_at,omitempty"`
	Confidence       float64    `json:"confidence"`
	DeviationMinutes float64    `json:"deviation_minutes"`
	FallbackDays     int        `json:"fallback_days"`
}

// ApproximationDetail records how far an approximated window drifted.
type ApproximationDetail struct {
	DeviationMinutes    float64 `json:"deviation_minutes"`
	FallbackDays        int     `json:"fallback_days"`
	Confidence          float64 `json:"confidence"`
	PercentageDeviation float64 `json:"percentage_deviation"`
}

// MarketContext holds calendar-derived context for the event instant.
type MarketContext struct {
	Session         Session `json:"session"`
	MarketHours     bool    `json:"market_hours"`
	IsMarketOpen    bool    `json:"is_market_open"`
	IsExtendedHours bool    `json:"is_extended_hours"`
	IsWeekend       bool    `json:"is_weekend"`
	IsHoliday       bool    `json:"is_holiday"`
}

// FeatureRecord is the extracted feature row for one event.
// Corresponds to feature_records table in PostgreSQL.
// The field set is append-only.
type FeatureRecord struct {
	EventID        string    `json:"event_id"` // PRIMARY KEY
	Ticker         string    `json:"ticker"`
	EventTimestamp time.Time `json:"event_timestamp"`
	Event          Event     `json:"event"` // denormalized source event
	Benchmarks     []string  `json:"benchmarks"`

	// Keyed by window name (primary) or TICKER:window (benchmarks).
	Windows map[string]WindowPrice `json:"windows"`

	// Percentage changes per instrument, keyed by ticker then horizon.
	PriceChanges map[string]map[string]*float64 `json:"price_changes"`

	// Alpha per benchmark, keyed by benchmark ticker then horizon.
	Alpha map[string]map[string]*float64 `json:"alpha"`

	// 30-day momentum and regime per instrument.
	Momentum map[string]*float64 `json:"momentum"`
	Regime   map[string]Regime   `json:"regime"`

	Market MarketContext `json:"market"`

	Completeness         float64                        `json:"completeness"`
	MissingWindows       []string                       `json:"missing_windows"`
	ApproximationQuality map[string]ApproximationDetail `json:"approximation_quality"`

	Status RecordStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// Clone returns a copy that shares no maps or slices with r.
// Payload values are copied one level deep.
func (r *FeatureRecord) Clone() *FeatureRecord {
	c := *r
	c.Event = r.Event.Clone()
	c.Benchmarks = append([]string(nil), r.Benchmarks...)
	c.MissingWindows = append([]string(nil), r.MissingWindows...)

	if r.Windows != nil {
		c.Windows = make(map[string]WindowPrice, len(r.Windows))
		for k, v := range r.Windows {
			c.Windows[k] = v
		}
	}
	c.PriceChanges = cloneNested(r.PriceChanges)
	c.Alpha = cloneNested(r.Alpha)
	if r.Momentum != nil {
		c.Momentum = make(map[string]*float64, len(r.Momentum))
		for k, v := range r.Momentum {
			c.Momentum[k] = v
		}
	}
	if r.Regime != nil {
		c.Regime = make(map[string]Regime, len(r.Regime))
		for k, v := range r.Regime {
			c.Regime[k] = v
		}
	}
	if r.ApproximationQuality != nil {
		c.ApproximationQuality = make(map[string]ApproximationDetail, len(r.ApproximationQuality))
		for k, v := range r.ApproximationQuality {
			c.ApproximationQuality[k] = v
		}
	}
	return &c
}

func cloneNested(m map[string]map[string]*float64) map[string]map[string]*float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]map[string]*float64, len(m))
	for k, inner := range m {
		ic := make(map[string]*float64, len(inner))
		for h, v := range inner {
			ic[h] = v
		}
		out[k] = ic
	}
	return out
}
