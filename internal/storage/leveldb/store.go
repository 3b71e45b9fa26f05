package leveldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	goleveldb "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"multicallScope/internal/model"
)

const (
	multicallPrefix = "multicall:"
	indexerPrefix   = "indexer:"
	eventPrefix     = "event:"
	statePrefix     = "state:"
)

// Store provides LevelDB persistence for multicall aggregates.
type Store struct {
	db   *goleveldb.DB
	sync bool
}

// NewStore opens (or creates) a LevelDB database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("leveldb path is required")
	}
	db, err := goleveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &Store{db: db, sync: true}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Store) LoadMulticall(_ context.Context, id string) (*model.MulticallRecord, bool, error) {
	var record model.MulticallRecord
	ok, err := s.getJSON(multicallPrefix+id, &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &record, true, nil
}

func (s *Store) LoadIndexer(_ context.Context, id string) (*model.IndexerAggregate, bool, error) {
	var record model.IndexerAggregate
	ok, err := s.getJSON(indexerPrefix+id, &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &record, true, nil
}

// SavePair writes both records and the processed marker in one batch.
func (s *Store) SavePair(_ context.Context, multicall *model.MulticallRecord, indexer *model.IndexerAggregate, ref model.EventRef) error {
	multicallData, err := json.Marshal(multicall)
	if err != nil {
		return fmt.Errorf("marshal multicall: %w", err)
	}
	indexerData, err := json.Marshal(indexer)
	if err != nil {
		return fmt.Errorf("marshal indexer: %w", err)
	}

	batch := new(goleveldb.Batch)
	batch.Put([]byte(multicallPrefix+multicall.ID), multicallData)
	batch.Put([]byte(indexerPrefix+indexer.ID), indexerData)
	batch.Put([]byte(eventPrefix+ref.Key()), []byte{1})

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: s.sync}); err != nil {
		return fmt.Errorf("write pair: %w", err)
	}
	return nil
}

func (s *Store) IsProcessed(_ context.Context, ref model.EventRef) (bool, error) {
	ok, err := s.db.Has([]byte(eventPrefix+ref.Key()), nil)
	if err != nil {
		return false, fmt.Errorf("check event: %w", err)
	}
	return ok, nil
}

// LoadState returns the checkpoint stored under name.
func (s *Store) LoadState(_ context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	data, err := s.db.Get([]byte(statePrefix+name), nil)
	if err != nil {
		if errors.Is(err, goleveldb.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	value, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse state %s: %w", name, err)
	}
	return value, true, nil
}

// SaveState stores the checkpoint under name.
func (s *Store) SaveState(_ context.Context, name string, value uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	return s.db.Put([]byte(statePrefix+name), []byte(strconv.FormatUint(value, 10)), &opt.WriteOptions{Sync: s.sync})
}

func (s *Store) getJSON(key string, out interface{}) (bool, error) {
	data, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, goleveldb.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
