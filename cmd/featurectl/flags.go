package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"event-feature-lab/internal/storage"
)

const dateLayout = "2006-01-02"

// filterFlags selects events by ticker and exchange-local date range.
type filterFlags struct {
	ticker    string
	startDate string
	endDate   string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.ticker, "ticker", "", "Only events for this ticker")
	fs.StringVar(&f.startDate, "start-date", "", "First event date, YYYY-MM-DD (inclusive)")
	fs.StringVar(&f.endDate, "end-date", "", "Last event date, YYYY-MM-DD (inclusive)")
}

// filter converts the flags to an EventFilter. Dates are exchange-local days.
func (f *filterFlags) filter(loc *time.Location) (storage.EventFilter, error) {
	out := storage.EventFilter{Ticker: strings.ToUpper(strings.TrimSpace(f.ticker))}

	if f.startDate != "" {
		d, err := time.ParseInLocation(dateLayout, f.startDate, loc)
		if err != nil {
			return out, fmt.Errorf("--start-date: %w", err)
		}
		out.Start = d
	}
	if f.endDate != "" {
		d, err := time.ParseInLocation(dateLayout, f.endDate, loc)
		if err != nil {
			return out, fmt.Errorf("--end-date: %w", err)
		}
		out.End = d.AddDate(0, 0, 1)
	}
	if !out.Start.IsZero() && !out.End.IsZero() && !out.Start.Before(out.End) {
		return out, fmt.Errorf("--start-date %s is after --end-date %s", f.startDate, f.endDate)
	}
	return out, nil
}

// seedFlags name files loaded into the stores before a command runs.
type seedFlags struct {
	pricesFile string
	eventsFile string
	overwrite  bool
}

func (f *seedFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.pricesFile, "prices-file", "", "CSV of price bars to load first")
	fs.StringVar(&f.eventsFile, "events-file", "", "JSON lines of events to load first")
	fs.BoolVar(&f.overwrite, "overwrite-prices", false, "Replace stored bars with the same key")
}

func (f *seedFlags) empty() bool {
	return f.pricesFile == "" && f.eventsFile == ""
}
