package aggregate

import (
	"context"
	"fmt"

	"multicallScope/internal/model"
)

// Store persists multicall and indexer records keyed by string id.
type Store interface {
	LoadMulticall(ctx context.Context, id string) (*model.MulticallRecord, bool, error)
	LoadIndexer(ctx context.Context, id string) (*model.IndexerAggregate, bool, error)
	// SavePair writes both records and marks ref processed as one unit.
	SavePair(ctx context.Context, multicall *model.MulticallRecord, indexer *model.IndexerAggregate, ref model.EventRef) error
	IsProcessed(ctx context.Context, ref model.EventRef) (bool, error)
}

// GetOrInitMulticall loads the record for id or builds it with newRecord.
// existed is false when newRecord was used.
func GetOrInitMulticall(ctx context.Context, store Store, id string, newRecord func() *model.MulticallRecord) (*model.MulticallRecord, bool, error) {
	record, ok, err := store.LoadMulticall(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("load multicall %s: %w", id, err)
	}
	if ok {
		return record, true, nil
	}
	return newRecord(), false, nil
}

// GetOrInitIndexer loads the aggregate for id or builds a zeroed one.
func GetOrInitIndexer(ctx context.Context, store Store, id string) (*model.IndexerAggregate, bool, error) {
	record, ok, err := store.LoadIndexer(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("load indexer %s: %w", id, err)
	}
	if ok {
		return record, true, nil
	}
	return model.NewIndexerAggregate(id), false, nil
}
