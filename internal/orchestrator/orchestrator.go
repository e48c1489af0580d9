// Package orchestrator drives feature extraction over stored events.
// It coordinates: event fetch → skip check → extraction → record upsert.
// All progress lives in the feature store, so an interrupted run resumes
// by running again.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/idhash"
	"event-feature-lab/internal/observability"
	"event-feature-lab/internal/storage"
)

// Mode selects how events are picked for a run.
type Mode string

const (
	ModeTest   Mode = "test"   // dry run over a few events, no writes
	ModeSingle Mode = "single" // one event by id
	ModeBatch  Mode = "batch"  // every matching event, in chunks
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeTest, ModeSingle, ModeBatch:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// EventState is the per-run lifecycle of one event.
type EventState string

const (
	StatePending    EventState = "pending"
	StateProcessing EventState = "processing"
	StateCompleted  EventState = "completed"
	StateFailed     EventState = "failed"
	StateSkipped    EventState = "skipped"
)

// Defaults.
const (
	DefaultTestLimit = 5
	DefaultChunkSize = 100
	DefaultWorkers   = 4
)

// Errors returned by Run.
var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidMode   = errors.New("invalid run mode")
)

// FeatureExtractor builds the feature record of one event.
type FeatureExtractor interface {
	Extract(ctx context.Context, ev *domain.Event, benchmarks []string) (*domain.FeatureRecord, error)
}

// Orchestrator partitions events across workers and records every outcome.
// It holds no run state between calls to Run.
type Orchestrator struct {
	events     storage.EventStore
	features   storage.FeatureStore
	extractor  FeatureExtractor
	benchmarks []string
	defTicker  string
	chunkSize  int
	workers    int
	logger     zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	EventStore   storage.EventStore
	FeatureStore storage.FeatureStore
	Extractor    FeatureExtractor

	// Benchmark tickers resolved alongside every event
	Benchmarks []string

	// DefaultTicker names failed records of events that carry no instrument
	DefaultTicker string

	// Batch sizing
	ChunkSize int // events fetched per chunk
	Workers   int // concurrent extractions per chunk

	Logger zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		events:     opts.EventStore,
		features:   opts.FeatureStore,
		extractor:  opts.Extractor,
		benchmarks: opts.Benchmarks,
		defTicker:  opts.DefaultTicker,
		chunkSize:  chunk,
		workers:    workers,
		logger:     opts.Logger,
	}
}

// RunOptions describes one invocation.
type RunOptions struct {
	Mode    Mode
	Limit   int    // max events; test mode defaults to DefaultTestLimit
	EventID string // single mode only
	Filter  storage.EventFilter

	// ForceProcess retries events whose stored record failed.
	ForceProcess bool
	// ForceOverwrite recomputes and replaces every stored record.
	ForceOverwrite bool
}

// Failure describes one failed event.
type Failure struct {
	EventID string
	Error   string
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunID     string
	Mode      Mode
	Succeeded int
	Skipped   int
	Failed    int
	Failures  []Failure

	// Records holds the extracted records of a test run, which are not persisted.
	Records []*domain.FeatureRecord

	mu sync.Mutex
}

// Total returns the number of events the run touched.
func (r *RunResult) Total() int {
	return r.Succeeded + r.Skipped + r.Failed
}

func (r *RunResult) record(state EventState, eventID string, err error, rec *domain.FeatureRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch state {
	case StateCompleted:
		r.Succeeded++
		if rec != nil {
			r.Records = append(r.Records, rec)
		}
	case StateSkipped:
		r.Skipped++
	case StateFailed:
		r.Failed++
		r.Failures = append(r.Failures, Failure{EventID: eventID, Error: err.Error()})
	}
	observability.RecordEvent(string(state))
}

// Run executes one invocation. Individual event failures are reported in
// the result and never abort the run; only setup errors and cancellation
// are returned.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{RunID: uuid.NewString(), Mode: opts.Mode}
	log := o.logger.With().Str("run_id", result.RunID).Str("mode", string(opts.Mode)).Logger()

	log.Info().
		Int("limit", opts.Limit).
		Bool("force_process", opts.ForceProcess).
		Bool("force_overwrite", opts.ForceOverwrite).
		Msg("run started")

	var err error
	switch opts.Mode {
	case ModeTest:
		err = o.runTest(ctx, opts, result, log)
	case ModeSingle:
		err = o.runSingle(ctx, opts, result, log)
	case ModeBatch:
		err = o.runBatch(ctx, opts, result, log)
	default:
		err = fmt.Errorf("%w: %q", ErrInvalidMode, opts.Mode)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordBatchRun(string(opts.Mode), status, time.Since(started).Seconds(), time.Now().Unix())

	log.Info().
		Int("succeeded", result.Succeeded).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(started)).
		Msg("run finished")

	return result, err
}

func (o *Orchestrator) runTest(ctx context.Context, opts RunOptions, result *RunResult, log zerolog.Logger) error {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultTestLimit
	}
	events, err := o.events.FetchPending(ctx, opts.Filter, limit)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	log.Info().Int("events", len(events)).Msg("dry run, nothing will be written")

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := o.extractor.Extract(ctx, ev, o.benchmarks)
		if err != nil {
			log.Error().Err(err).Str("event_id", ev.EventID).Msg("extraction failed")
			result.record(StateFailed, ev.EventID, err, nil)
			continue
		}
		result.record(StateCompleted, ev.EventID, nil, rec)
	}
	return nil
}

func (o *Orchestrator) runSingle(ctx context.Context, opts RunOptions, result *RunResult, log zerolog.Logger) error {
	if opts.EventID == "" {
		return fmt.Errorf("%w: single mode requires an event id", ErrEventNotFound)
	}
	ev, err := o.events.GetByID(ctx, opts.EventID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrEventNotFound, opts.EventID)
	}
	if err != nil {
		return fmt.Errorf("get event %s: %w", opts.EventID, err)
	}
	o.process(ctx, ev, opts, result, log)
	return nil
}

func (o *Orchestrator) runBatch(ctx context.Context, opts RunOptions, result *RunResult, log zerolog.Logger) error {
	filter := opts.Filter
	remaining := opts.Limit

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		size := o.chunkSize
		if opts.Limit > 0 && remaining < size {
			size = remaining
		}
		events, err := o.events.FetchPending(ctx, filter, size)
		if err != nil {
			return fmt.Errorf("fetch events at offset %d: %w", filter.Offset, err)
		}
		if len(events) == 0 {
			return nil
		}
		log.Debug().Int("offset", filter.Offset).Int("events", len(events)).Msg("processing chunk")

		// Each event goes to exactly one worker; errors are recorded per event.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)
		for _, ev := range events {
			g.Go(func() error {
				o.process(gctx, ev, opts, result, log)
				return nil
			})
		}
		_ = g.Wait()

		filter.Offset += len(events)
		if opts.Limit > 0 {
			remaining -= len(events)
			if remaining <= 0 {
				return nil
			}
		}
		if len(events) < size {
			return nil
		}
	}
}

// process takes one event from pending to a terminal state.
func (o *Orchestrator) process(ctx context.Context, ev *domain.Event, opts RunOptions, result *RunResult, log zerolog.Logger) {
	log = log.With().Str("event_id", ev.EventID).Logger()

	existing, err := o.features.Get(ctx, ev.EventID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error().Err(err).Msg("cannot read existing record")
		result.record(StateFailed, ev.EventID, fmt.Errorf("read existing record: %w", err), nil)
		return
	}
	if existing != nil && !shouldRecompute(existing, opts) {
		log.Debug().Str("status", string(existing.Status)).Msg("record exists, skipped")
		result.record(StateSkipped, ev.EventID, nil, nil)
		return
	}

	log.Debug().Str("state", string(StateProcessing)).Msg("extracting")
	rec, extractErr := o.extractor.Extract(ctx, ev, o.benchmarks)
	if extractErr != nil {
		if ctx.Err() != nil {
			// Abandoned mid-flight; nothing was written, the next run picks it up.
			result.record(StateFailed, ev.EventID, extractErr, nil)
			return
		}
		rec = failedRecord(ev, ev.ResolveTicker(o.defTicker), o.benchmarks, extractErr)
	}

	if _, err := o.features.Upsert(ctx, rec, existing != nil); err != nil {
		log.Error().Err(err).Msg("upsert failed")
		result.record(StateFailed, ev.EventID, fmt.Errorf("upsert record: %w", err), nil)
		return
	}

	if extractErr != nil {
		log.Error().Err(extractErr).Msg("extraction failed")
		result.record(StateFailed, ev.EventID, extractErr, nil)
		return
	}

	fp, _ := idhash.ComputeRecordFingerprint(rec)
	log.Info().
		Float64("completeness", rec.Completeness).
		Int("missing", len(rec.MissingWindows)).
		Str("fingerprint", fp).
		Msg("record stored")
	result.record(StateCompleted, ev.EventID, nil, nil)
}

func shouldRecompute(existing *domain.FeatureRecord, opts RunOptions) bool {
	if opts.ForceOverwrite {
		return true
	}
	return opts.ForceProcess && existing.Status == domain.RecordStatusFailed
}

func failedRecord(ev *domain.Event, ticker string, benchmarks []string, err error) *domain.FeatureRecord {
	return &domain.FeatureRecord{
		EventID:        ev.EventID,
		Ticker:         ticker,
		EventTimestamp: ev.Timestamp.UTC(),
		Event:          ev.Clone(),
		Benchmarks:     benchmarks,
		Completeness:   0,
		MissingWindows: []string{},
		Status:         domain.RecordStatusFailed,
		Error:          err.Error(),
	}
}
