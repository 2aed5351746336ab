package main

import (
	"context"
	"fmt"

	"positionScope/internal/config"
	"positionScope/internal/storage"
	"positionScope/internal/storage/postgres"
)

// openSinks returns nil when no sink is configured.
func openSinks(ctx context.Context, cfg config.SinkConfig) (storage.Sink, func(), error) {
	var sinks []storage.Sink
	closeFn := func() {}

	if cfg.JSONL != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.JSONL))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		sinks = append(sinks, store)
		closeFn = store.Close
	}
	if len(sinks) == 0 {
		return nil, closeFn, nil
	}
	return storage.Multi(sinks...), closeFn, nil
}
