package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"event-feature-lab/internal/config"
	"event-feature-lab/internal/storage"
	"event-feature-lab/internal/storage/cache"
	chstore "event-feature-lab/internal/storage/clickhouse"
	"event-feature-lab/internal/storage/guard"
	"event-feature-lab/internal/storage/memory"
	"event-feature-lab/internal/storage/postgres"
)

// stores bundles the backends a command works against.
type stores struct {
	prices   storage.PriceStore
	events   storage.EventStore
	eventsW  storage.EventWriter
	features storage.FeatureStore

	closers []func()
}

// Close releases connections in reverse order of opening.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores builds the configured backend and wraps price reads with the
// guard and cache decorators when enabled. Cache sits outermost so hits
// never spend rate-limit tokens.
func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (*stores, error) {
	s := &stores{}

	switch cfg.Storage.Backend {
	case config.BackendSQL:
		pool, err := postgres.NewPool(ctx, cfg.Storage.PostgresDSN, 0)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })

		events := postgres.NewEventStore(pool)
		s.events, s.eventsW = events, events
		s.features = postgres.NewFeatureStore(pool)
		s.prices = chstore.NewPriceStore(conn)

	default:
		events := memory.NewEventStore()
		s.events, s.eventsW = events, events
		s.features = memory.NewFeatureStore()
		s.prices = memory.NewPriceStore()
	}

	if cfg.Guard.Enabled {
		s.prices = guard.New(s.prices, guard.Options{
			RequestsPerSec:   cfg.Guard.RequestsPerSec,
			Burst:            cfg.Guard.Burst,
			FailureThreshold: cfg.Guard.FailureThreshold,
			OpenTimeout:      cfg.Guard.OpenTimeout.Duration,
			Logger:           log,
		})
	}

	if cfg.Cache.Enabled {
		client, err := cache.NewClient(ctx, cfg.Cache.Addr, cfg.Cache.DB)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.prices = cache.New(s.prices, client, cache.Options{
			TTL:    cfg.Cache.TTL.Duration,
			Logger: log,
		})
	}

	log.Debug().
		Str("backend", cfg.Storage.Backend).
		Bool("guard", cfg.Guard.Enabled).
		Bool("cache", cfg.Cache.Enabled).
		Msg("stores opened")
	return s, nil
}
