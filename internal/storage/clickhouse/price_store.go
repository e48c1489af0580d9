package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage"
)

// PriceStore implements storage.PriceStore over the price_observations
// ReplacingMergeTree. Reads use FINAL so replaced versions are never returned.
type PriceStore struct {
	conn *Conn
	now  func() time.Time
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn, now: time.Now}
}

// Compile-time interface checks.
var (
	_ storage.PriceStore   = (*PriceStore)(nil)
	_ storage.PriceCounter = (*PriceStore)(nil)
)

const priceColumns = `ticker, ts_ms, timeframe, source, open, high, low, close, volume`

// Upsert writes observations. With overwrite false, keys already stored
// (or repeated earlier in the batch) are skipped.
func (s *PriceStore) Upsert(ctx context.Context, obs []*domain.PriceObservation, overwrite bool) (int, error) {
	batchObs, err := normalizeBatch(obs, overwrite)
	if err != nil {
		return 0, err
	}
	if len(batchObs) == 0 {
		return 0, nil
	}

	if !overwrite {
		existing, err := s.existingKeys(ctx, batchObs)
		if err != nil {
			return 0, err
		}
		kept := batchObs[:0]
		for _, o := range batchObs {
			if _, ok := existing[o.Key()]; !ok {
				kept = append(kept, o)
			}
		}
		batchObs = kept
		if len(batchObs) == 0 {
			return 0, nil
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_observations (`+priceColumns+`, version)`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	version := uint64(s.now().UnixNano())
	for _, o := range batchObs {
		err = batch.Append(
			o.Ticker, o.Timestamp.UnixMilli(), string(o.Timeframe), string(o.Source),
			o.Open, o.High, o.Low, o.Close, o.Volume, version,
		)
		if err != nil {
			return 0, fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}

	return len(batchObs), nil
}

// Query returns observations for ticker in [start, end), ordered by timestamp ASC.
func (s *PriceStore) Query(ctx context.Context, ticker string, start, end time.Time) ([]*domain.PriceObservation, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM price_observations FINAL
		WHERE ticker = ? AND ts_ms >= ? AND ts_ms < ?
		ORDER BY ts_ms ASC, source ASC
	`

	started := time.Now()
	rows, err := s.conn.Query(ctx, query, strings.ToUpper(ticker), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		observe("query_prices", started, err)
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	result, err := scanPrices(rows)
	observe("query_prices", started, err)
	return result, err
}

// CountInRange returns the number of observations for ticker in [start, end).
func (s *PriceStore) CountInRange(ctx context.Context, ticker string, start, end time.Time) (int, error) {
	query := `
		SELECT count() FROM price_observations FINAL
		WHERE ticker = ? AND ts_ms >= ? AND ts_ms < ?
	`

	var count uint64
	started := time.Now()
	err := s.conn.QueryRow(ctx, query, strings.ToUpper(ticker), start.UnixMilli(), end.UnixMilli()).Scan(&count)
	observe("count_prices", started, err)
	if err != nil {
		return 0, fmt.Errorf("count prices: %w", err)
	}
	return int(count), nil
}

// existingKeys returns the stored keys overlapping the batch's per-ticker time span.
func (s *PriceStore) existingKeys(ctx context.Context, obs []*domain.PriceObservation) (map[domain.PriceKey]struct{}, error) {
	type span struct{ min, max int64 }
	spans := make(map[string]span)
	for _, o := range obs {
		ms := o.Timestamp.UnixMilli()
		sp, ok := spans[o.Ticker]
		if !ok {
			spans[o.Ticker] = span{ms, ms}
			continue
		}
		if ms < sp.min {
			sp.min = ms
		}
		if ms > sp.max {
			sp.max = ms
		}
		spans[o.Ticker] = sp
	}

	existing := make(map[domain.PriceKey]struct{})
	for ticker, sp := range spans {
		rows, err := s.conn.Query(ctx, `
			SELECT ts_ms, timeframe, source
			FROM price_observations FINAL
			WHERE ticker = ? AND ts_ms >= ? AND ts_ms <= ?
		`, ticker, sp.min, sp.max)
		if err != nil {
			return nil, fmt.Errorf("check existing prices: %w", err)
		}

		for rows.Next() {
			var (
				tsMs      int64
				timeframe string
				source    string
			)
			if err := rows.Scan(&tsMs, &timeframe, &source); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan existing price key: %w", err)
			}
			existing[domain.PriceKey{
				Ticker:    ticker,
				Timestamp: tsMs,
				Timeframe: domain.Timeframe(timeframe),
				Source:    domain.Provenance(source),
			}] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate existing price keys: %w", err)
		}
	}
	return existing, nil
}

// normalizeBatch validates obs and collapses repeated keys: the first
// occurrence wins without overwrite, the last with it.
func normalizeBatch(obs []*domain.PriceObservation, overwrite bool) ([]*domain.PriceObservation, error) {
	out := make([]*domain.PriceObservation, 0, len(obs))
	index := make(map[domain.PriceKey]int, len(obs))
	for _, o := range obs {
		if o == nil || o.Ticker == "" || o.Timestamp.IsZero() || o.Timeframe == "" || o.Source == "" {
			return nil, storage.ErrInvalidInput
		}
		c := *o
		c.Ticker = strings.ToUpper(c.Ticker)
		c.Timestamp = c.Timestamp.UTC()

		key := c.Key()
		if i, seen := index[key]; seen {
			if overwrite {
				out[i] = &c
			}
			continue
		}
		index[key] = len(out)
		out = append(out, &c)
	}
	return out, nil
}

func scanPrices(rows driver.Rows) ([]*domain.PriceObservation, error) {
	var result []*domain.PriceObservation
	for rows.Next() {
		var (
			o         domain.PriceObservation
			tsMs      int64
			timeframe string
			source    string
		)
		if err := rows.Scan(
			&o.Ticker, &tsMs, &timeframe, &source,
			&o.Open, &o.High, &o.Low, &o.Close, &o.Volume,
		); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		o.Timestamp = time.UnixMilli(tsMs).UTC()
		o.Timeframe = domain.Timeframe(timeframe)
		o.Source = domain.Provenance(source)
		result = append(result, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}
	return result, nil
}
