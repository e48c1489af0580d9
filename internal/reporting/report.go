package reporting

import "time"

// Report summarizes stored feature records and, optionally, one run.
type Report struct {
	GeneratedAt time.Time
	Ticker      string // empty for all tickers

	Run *RunSection // nil when not tied to a run

	DataSummary DataSummary
	DataQuality DataQualitySection

	// Benchmark regime counts (sorted by benchmark, regime)
	Regimes []RegimeRow

	// Failed records (sorted by event_id)
	Failures []FailureRow
}

// RunSection describes the batch run the report was produced for.
type RunSection struct {
	RunID     string
	Mode      string
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// DataSummary contains data description.
type DataSummary struct {
	TotalRecords     int
	CompletedRecords int
	FailedRecords    int
	Tickers          int
	DateRangeStart   time.Time
	DateRangeEnd     time.Time
}

// DataQualitySection aggregates completeness over completed records.
type DataQualitySection struct {
	MeanCompleteness    float64
	MinCompleteness     float64
	FullyComplete       int // completeness == 1
	ApproximatedWindows int // windows resolved with deviation or fallback
	MostMissing         []MissingWindowRow
}

// MissingWindowRow counts how often a window key was missing.
type MissingWindowRow struct {
	Window string
	Count  int
}

// RegimeRow counts records per benchmark regime.
type RegimeRow struct {
	Benchmark string
	Regime    string
	Count     int
}

// FailureRow lists one failed record.
type FailureRow struct {
	EventID string
	Ticker  string
	Error   string
}
