package reporting

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/metrics"
)

// CSVHeader returns the column names for records with the given benchmarks.
// Primary changes come first, then alpha per benchmark, then momentum and regime.
func CSVHeader(benchmarks []string) []string {
	header := []string{
		"event_id", "ticker", "event_timestamp", "status", "session", "market_hours",
		"completeness", "missing_windows",
	}
	horizons := metrics.ChangeHorizons()
	for _, h := range horizons {
		header = append(header, "change_"+h)
	}
	for _, bm := range benchmarks {
		for _, h := range horizons {
			header = append(header, "alpha_"+bm+"_"+h)
		}
	}
	header = append(header, "momentum", "regime")
	for _, bm := range benchmarks {
		header = append(header, "momentum_"+bm, "regime_"+bm)
	}
	return append(header, "error")
}

// WriteCSV writes one flat training row per record. The benchmark columns
// are the union of all records' benchmarks; absent values are empty cells.
func WriteCSV(w io.Writer, records []*domain.FeatureRecord) error {
	benchmarks := benchmarkUnion(records)
	horizons := metrics.ChangeHorizons()

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader(benchmarks)); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.EventID,
			rec.Ticker,
			rec.EventTimestamp.UTC().Format(time.RFC3339),
			string(rec.Status),
			string(rec.Market.Session),
			strconv.FormatBool(rec.Market.MarketHours),
			formatFloat(&rec.Completeness),
			strconv.Itoa(len(rec.MissingWindows)),
		}
		changes := rec.PriceChanges[rec.Ticker]
		for _, h := range horizons {
			row = append(row, formatFloat(changes[h]))
		}
		for _, bm := range benchmarks {
			alpha := rec.Alpha[bm]
			for _, h := range horizons {
				row = append(row, formatFloat(alpha[h]))
			}
		}
		row = append(row, formatFloat(rec.Momentum[rec.Ticker]), string(rec.Regime[rec.Ticker]))
		for _, bm := range benchmarks {
			row = append(row, formatFloat(rec.Momentum[bm]), string(rec.Regime[bm]))
		}
		row = append(row, rec.Error)

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func benchmarkUnion(records []*domain.FeatureRecord) []string {
	set := make(map[string]struct{})
	for _, rec := range records {
		for _, bm := range rec.Benchmarks {
			set[bm] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for bm := range set {
		out = append(out, bm)
	}
	sort.Strings(out)
	return out
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}
