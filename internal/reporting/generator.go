package reporting

import (
	"context"
	"sort"
	"time"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/orchestrator"
	"event-feature-lab/internal/storage"
)

// maxMissingRows bounds the most-missing table.
const maxMissingRows = 10

// Generator produces reports from stored feature records.
type Generator struct {
	featureStore storage.FeatureStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(featureStore storage.FeatureStore) *Generator {
	return &Generator{
		featureStore: featureStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over the stored records of ticker (all when empty).
// run may be nil.
func (g *Generator) Generate(ctx context.Context, ticker string, run *orchestrator.RunResult, runDuration time.Duration) (*Report, error) {
	records, err := g.featureStore.List(ctx, ticker)
	if err != nil {
		return nil, err
	}

	r := Summarize(records)
	r.GeneratedAt = g.now()
	r.Ticker = ticker
	if run != nil {
		r.Run = &RunSection{
			RunID:     run.RunID,
			Mode:      string(run.Mode),
			Succeeded: run.Succeeded,
			Skipped:   run.Skipped,
			Failed:    run.Failed,
			Duration:  runDuration,
		}
	}
	return r, nil
}

// Summarize aggregates records into a report without run or clock data.
func Summarize(records []*domain.FeatureRecord) *Report {
	r := &Report{}
	tickers := make(map[string]struct{})
	missing := make(map[string]int)
	regimes := make(map[[2]string]int)

	var completenessSum float64
	completed := 0

	for _, rec := range records {
		r.DataSummary.TotalRecords++
		tickers[rec.Ticker] = struct{}{}

		ts := rec.EventTimestamp
		if r.DataSummary.DateRangeStart.IsZero() || ts.Before(r.DataSummary.DateRangeStart) {
			r.DataSummary.DateRangeStart = ts
		}
		if ts.After(r.DataSummary.DateRangeEnd) {
			r.DataSummary.DateRangeEnd = ts
		}

		if rec.Status == domain.RecordStatusFailed {
			r.DataSummary.FailedRecords++
			r.Failures = append(r.Failures, FailureRow{EventID: rec.EventID, Ticker: rec.Ticker, Error: rec.Error})
			continue
		}

		r.DataSummary.CompletedRecords++
		completenessSum += rec.Completeness
		if completed == 0 || rec.Completeness < r.DataQuality.MinCompleteness {
			r.DataQuality.MinCompleteness = rec.Completeness
		}
		completed++
		if rec.Completeness == 1 {
			r.DataQuality.FullyComplete++
		}
		r.DataQuality.ApproximatedWindows += len(rec.ApproximationQuality)
		for _, w := range rec.MissingWindows {
			missing[w]++
		}
		for bm, regime := range rec.Regime {
			if bm == rec.Ticker {
				continue
			}
			regimes[[2]string{bm, string(regime)}]++
		}
	}

	r.DataSummary.Tickers = len(tickers)
	if completed > 0 {
		r.DataQuality.MeanCompleteness = completenessSum / float64(completed)
	}
	r.DataQuality.MostMissing = topMissing(missing)
	r.Regimes = regimeRows(regimes)

	sort.Slice(r.Failures, func(i, j int) bool {
		return r.Failures[i].EventID < r.Failures[j].EventID
	})
	return r
}

// topMissing returns the most frequently missing windows, ties by name.
func topMissing(counts map[string]int) []MissingWindowRow {
	rows := make([]MissingWindowRow, 0, len(counts))
	for w, n := range counts {
		rows = append(rows, MissingWindowRow{Window: w, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Window < rows[j].Window
	})
	if len(rows) > maxMissingRows {
		rows = rows[:maxMissingRows]
	}
	return rows
}

func regimeRows(counts map[[2]string]int) []RegimeRow {
	rows := make([]RegimeRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, RegimeRow{Benchmark: k[0], Regime: k[1], Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Benchmark != rows[j].Benchmark {
			return rows[i].Benchmark < rows[j].Benchmark
		}
		return rows[i].Regime < rows[j].Regime
	})
	return rows
}
