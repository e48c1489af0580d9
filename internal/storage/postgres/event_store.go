package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.EventStore  = (*EventStore)(nil)
	_ storage.EventWriter = (*EventStore)(nil)
)

const eventColumns = `event_id, ticker, event_ts, payload`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.Event) error {
	if e == nil || e.EventID == "" || e.Timestamp.IsZero() {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload of %s: %w", e.EventID, err)
	}

	query := `
		INSERT INTO events (event_id, ticker, event_ts, payload)
		VALUES ($1, $2, $3, $4)
	`

	_, err = s.pool.Exec(ctx, query,
		e.EventID,
		strings.ToUpper(e.Ticker),
		e.Timestamp.UTC(),
		payload,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(ctx context.Context, eventID string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_id = $1`

	started := time.Now()
	e, err := scanEvent(s.pool.QueryRow(ctx, query, eventID))
	observe("get_event", started, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get event by id: %w", err)
	}
	return e, nil
}

// FetchPending returns events matching filter ordered by (event_ts, event_id).
func (s *EventStore) FetchPending(ctx context.Context, filter storage.EventFilter, limit int) ([]*domain.Event, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Ticker != "" {
		args = append(args, strings.ToUpper(filter.Ticker))
		conds = append(conds, fmt.Sprintf("ticker = $%d", len(args)))
	}
	if !filter.Start.IsZero() {
		args = append(args, filter.Start.UTC())
		conds = append(conds, fmt.Sprintf("event_ts >= $%d", len(args)))
	}
	if !filter.End.IsZero() {
		args = append(args, filter.End.UTC())
		conds = append(conds, fmt.Sprintf("event_ts < $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + eventColumns + ` FROM events`)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY event_ts ASC, event_id ASC")
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	started := time.Now()
	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		observe("fetch_events", started, err)
		return nil, fmt.Errorf("fetch pending events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, e)
	}
	err = rows.Err()
	observe("fetch_events", started, err)
	if err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

// scanEvent scans a single row into an Event.
func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	var payload []byte

	if err := row.Scan(&e.EventID, &e.Ticker, &e.Timestamp, &payload); err != nil {
		return nil, err
	}
	e.Timestamp = e.Timestamp.UTC()

	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", e.EventID, err)
		}
	}
	return &e, nil
}
