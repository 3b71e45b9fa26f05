package storage

import (
	"context"
	"sync"

	"multicallScope/internal/model"
)

// MemoryStore keeps records in process memory. Loaded records are copies, so
// callers only change stored state through SavePair.
type MemoryStore struct {
	mu         sync.RWMutex
	multicalls map[string]*model.MulticallRecord
	indexers   map[string]*model.IndexerAggregate
	processed  map[string]struct{}
	state      map[string]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		multicalls: make(map[string]*model.MulticallRecord),
		indexers:   make(map[string]*model.IndexerAggregate),
		processed:  make(map[string]struct{}),
		state:      make(map[string]uint64),
	}
}

func (s *MemoryStore) LoadMulticall(_ context.Context, id string) (*model.MulticallRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.multicalls[id]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (s *MemoryStore) LoadIndexer(_ context.Context, id string) (*model.IndexerAggregate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.indexers[id]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (s *MemoryStore) SavePair(_ context.Context, multicall *model.MulticallRecord, indexer *model.IndexerAggregate, ref model.EventRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multicalls[multicall.ID] = multicall.Clone()
	s.indexers[indexer.ID] = indexer.Clone()
	s.processed[ref.Key()] = struct{}{}
	return nil
}

func (s *MemoryStore) IsProcessed(_ context.Context, ref model.EventRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[ref.Key()]
	return ok, nil
}

// LoadState returns the checkpoint stored under name.
func (s *MemoryStore) LoadState(_ context.Context, name string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.state[name]
	return value, ok, nil
}

func (s *MemoryStore) SaveState(_ context.Context, name string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[name] = value
	return nil
}

// Counts returns the number of stored multicall and indexer records.
func (s *MemoryStore) Counts() (multicalls int, indexers int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.multicalls), len(s.indexers)
}
