package domain

import "time"

// Provenance tags the origin of a price value.
type Provenance string

const (
	ProvenanceRaw          Provenance = "raw"
	ProvenanceInterpolated Provenance = "interpolated"
)

// Timeframe is the bar resolution of a price observation.
type Timeframe string

const (
	Timeframe1Min Timeframe = "1m"
	Timeframe1Day Timeframe = "1d"
)

// PriceObservation is one OHLCV bar for an instrument.
// Corresponds to price_observations table in ClickHouse.
// Uniquely identified by (Ticker, Timestamp, Timeframe, Source).
type PriceObservation struct {
	Ticker    string     // instrument ticker, upper case
	Timestamp time.Time  // bar start, UTC
	Timeframe Timeframe  // bar resolution
	Open      float64    // open price
	High      float64    // high price
	Low       float64    // low price
	Close     float64    // close price
	Volume    float64    // traded volume
	Source    Provenance // raw | interpolated
}

// PriceKey identifies a price observation for upsert conflict detection.
type PriceKey struct {
	Ticker    string
	Timestamp int64 // Unix milliseconds
	Timeframe Timeframe
	Source    Provenance
}

// Key returns the conflict key of the observation.
func (p *PriceObservation) Key() PriceKey {
	return PriceKey{
		Ticker:    p.Ticker,
		Timestamp: p.Timestamp.UnixMilli(),
		Timeframe: p.Timeframe,
		Source:    p.Source,
	}
}
