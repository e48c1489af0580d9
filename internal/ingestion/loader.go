// Package ingestion loads events and price bars from files into the stores.
package ingestion

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage"
)

// DefaultBatchSize is the number of price bars written per Upsert.
const DefaultBatchSize = 1000

// priceHeader is the expected CSV header for price files.
var priceHeader = []string{"ticker", "timestamp", "timeframe", "open", "high", "low", "close", "volume", "source"}

// Result summarizes a load.
type Result struct {
	Read       int
	Written    int
	Duplicates int
}

// Loader writes file contents into the stores.
type Loader struct {
	prices    storage.PriceStore
	events    storage.EventWriter
	batchSize int
	logger    zerolog.Logger
}

// LoaderOptions contains configuration for creating a Loader.
type LoaderOptions struct {
	Prices    storage.PriceStore  // optional
	Events    storage.EventWriter // optional
	BatchSize int
	Logger    zerolog.Logger
}

// NewLoader creates a new file loader.
func NewLoader(opts LoaderOptions) *Loader {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{
		prices:    opts.Prices,
		events:    opts.Events,
		batchSize: batchSize,
		logger:    opts.Logger,
	}
}

// LoadPrices reads CSV bars (see priceHeader; timestamp RFC3339, source
// defaults to raw) and upserts them in batches.
func (l *Loader) LoadPrices(ctx context.Context, r io.Reader, overwrite bool) (Result, error) {
	if l.prices == nil {
		return Result{}, errors.New("loader has no price store")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read price header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return Result{}, err
	}

	var (
		res   Result
		batch []*domain.PriceObservation
		line  = 1
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.prices.Upsert(ctx, batch, overwrite)
		if err != nil {
			return fmt.Errorf("write price batch ending line %d: %w", line, err)
		}
		res.Written += n
		res.Duplicates += len(batch) - n
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return res, fmt.Errorf("read price line %d: %w", line, err)
		}
		obs, err := parsePrice(rec, cols)
		if err != nil {
			return res, fmt.Errorf("price line %d: %w", line, err)
		}
		batch = append(batch, obs)
		res.Read++

		if len(batch) >= l.batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	l.logger.Info().Int("read", res.Read).Int("written", res.Written).Msg("prices loaded")
	return res, nil
}

// LoadEvents reads newline-delimited JSON events, orders them and inserts
// each one. Events already stored count as duplicates.
func (l *Loader) LoadEvents(ctx context.Context, r io.Reader) (Result, error) {
	if l.events == nil {
		return Result{}, errors.New("loader has no event store")
	}

	var events []*domain.Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var e domain.Event
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return Result{}, fmt.Errorf("event line %d: %w", line, err)
		}
		if e.EventID == "" || e.Timestamp.IsZero() {
			return Result{}, fmt.Errorf("event line %d: event_id and timestamp are required", line)
		}
		e.Ticker = strings.ToUpper(e.Ticker)
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, &e)
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("read events: %w", err)
	}

	SortEvents(events)

	res := Result{Read: len(events)}
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := l.events.Insert(ctx, e)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			res.Duplicates++
		case err != nil:
			return res, fmt.Errorf("insert event %s: %w", e.EventID, err)
		default:
			res.Written++
		}
	}

	l.logger.Info().Int("read", res.Read).Int("written", res.Written).Msg("events loaded")
	return res, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range priceHeader {
		if name == "source" || name == "volume" {
			continue
		}
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("price header missing column %q", name)
		}
	}
	return cols, nil
}

func parsePrice(rec []string, cols map[string]int) (*domain.PriceObservation, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	ts, err := time.Parse(time.RFC3339, field("timestamp"))
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}

	obs := &domain.PriceObservation{
		Ticker:    strings.ToUpper(field("ticker")),
		Timestamp: ts.UTC(),
		Timeframe: domain.Timeframe(field("timeframe")),
		Source:    domain.ProvenanceRaw,
	}
	if s := field("source"); s != "" {
		obs.Source = domain.Provenance(s)
	}
	if obs.Ticker == "" || obs.Timeframe == "" {
		return nil, errors.New("ticker and timeframe are required")
	}

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &obs.Open},
		{"high", &obs.High},
		{"low", &obs.Low},
		{"close", &obs.Close},
		{"volume", &obs.Volume},
	} {
		v := field(f.name)
		if v == "" && f.name == "volume" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = x
	}
	return obs, nil
}
