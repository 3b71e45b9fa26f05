package main

import (
	"context"
	"fmt"

	"multicallScope/internal/aggregate"
	"multicallScope/internal/config"
	"multicallScope/internal/indexer"
	"multicallScope/internal/storage"
	"multicallScope/internal/storage/leveldb"
	"multicallScope/internal/storage/postgres"
)

type backend interface {
	aggregate.Store
	indexer.StateStore
	Close()
}

type memoryBackend struct {
	*storage.MemoryStore
}

func (memoryBackend) Close() {}

func openStore(ctx context.Context, cfg config.StoreConfig) (backend, error) {
	switch cfg.Kind {
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	case config.StoreLevelDB:
		store, err := leveldb.NewStore(cfg.LevelDBPath)
		if err != nil {
			return nil, fmt.Errorf("open leveldb: %w", err)
		}
		return store, nil
	case config.StoreMemory:
		return memoryBackend{storage.NewMemoryStore()}, nil
	default:
		return nil, fmt.Errorf("unsupported store: %q", cfg.Kind)
	}
}
