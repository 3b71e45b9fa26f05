package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"multicallScope/internal/model"
)

// Store provides Postgres persistence for multicall aggregates.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables used by the store.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LoadMulticall returns the multicall record for a transaction hash.
func (s *Store) LoadMulticall(ctx context.Context, id string) (*model.MulticallRecord, bool, error) {
	var (
		record                           model.MulticallRecord
		blockNumber                      int64
		gasUsed, legacyGasUsed, gasSaved string
		gasReduction                     string
		allocates, reallocates, unallocs int64
		actions                          int64
	)
	row := s.pool.QueryRow(ctx, `
		SELECT indexer, block_number, gas_used::text, legacy_gas_used::text, gas_saved::text,
			gas_reduction::text, allocate_count, reallocate_count, unallocate_count, actions_count
		FROM multicalls WHERE id=$1
	`, id)
	err := row.Scan(&record.Indexer, &blockNumber, &gasUsed, &legacyGasUsed, &gasSaved,
		&gasReduction, &allocates, &reallocates, &unallocs, &actions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	record.ID = id
	record.BlockNumber = uint64(blockNumber)
	record.AllocateCount = uint64(allocates)
	record.ReallocateCount = uint64(reallocates)
	record.UnallocateCount = uint64(unallocs)
	record.ActionsCount = uint64(actions)
	if record.GasUsed, err = parseBigInt(gasUsed); err != nil {
		return nil, false, err
	}
	if record.LegacyGasUsed, err = parseBigInt(legacyGasUsed); err != nil {
		return nil, false, err
	}
	if record.GasSaved, err = parseBigInt(gasSaved); err != nil {
		return nil, false, err
	}
	if record.GasReduction, err = decimal.NewFromString(gasReduction); err != nil {
		return nil, false, fmt.Errorf("parse gas_reduction: %w", err)
	}
	return &record, true, nil
}

// LoadIndexer returns the aggregate for an indexer address.
func (s *Store) LoadIndexer(ctx context.Context, id string) (*model.IndexerAggregate, bool, error) {
	var (
		record                                    model.IndexerAggregate
		allocates, reallocates, unallocs, actions int64
		multicalls                                int64
		gasUsed, legacyGasUsed, gasSaved          string
		gasReduction, avgSaved, avgActions        string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT allocates_bundled, reallocates_bundled, unallocates_bundled, total_actions_bundled,
			total_gas_used::text, total_legacy_gas_used::text, total_gas_saved::text, gas_reduction::text,
			multicall_transactions, avg_gas_saved_per_multicall::text, avg_actions_per_multicall::text
		FROM indexers WHERE id=$1
	`, id)
	err := row.Scan(&allocates, &reallocates, &unallocs, &actions,
		&gasUsed, &legacyGasUsed, &gasSaved, &gasReduction,
		&multicalls, &avgSaved, &avgActions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	record.ID = id
	record.AllocatesBundled = uint64(allocates)
	record.ReallocatesBundled = uint64(reallocates)
	record.UnallocatesBundled = uint64(unallocs)
	record.TotalActionsBundled = uint64(actions)
	record.MulticallTransactions = uint64(multicalls)
	if record.TotalGasUsed, err = parseBigInt(gasUsed); err != nil {
		return nil, false, err
	}
	if record.TotalLegacyGasUsed, err = parseBigInt(legacyGasUsed); err != nil {
		return nil, false, err
	}
	if record.TotalGasSaved, err = parseBigInt(gasSaved); err != nil {
		return nil, false, err
	}
	for _, field := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{gasReduction, &record.GasReduction},
		{avgSaved, &record.AvgGasSavedPerMulticall},
		{avgActions, &record.AvgActionsPerMulticall},
	} {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return nil, false, fmt.Errorf("parse decimal: %w", err)
		}
		*field.dst = value
	}
	return &record, true, nil
}

// SavePair upserts both records and marks the event processed in one transaction.
func (s *Store) SavePair(ctx context.Context, multicall *model.MulticallRecord, indexer *model.IndexerAggregate, ref model.EventRef) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO processed_events (tx_hash, log_index, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`, ref.TxHash, int64(ref.LogIndex)); err != nil {
		return fmt.Errorf("mark event: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO multicalls (
			id, indexer, block_number, gas_used, legacy_gas_used, gas_saved, gas_reduction,
			allocate_count, reallocate_count, unallocate_count, actions_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6::numeric,$7::numeric,$8,$9,$10,$11,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			legacy_gas_used = EXCLUDED.legacy_gas_used,
			gas_saved = EXCLUDED.gas_saved,
			gas_reduction = EXCLUDED.gas_reduction,
			allocate_count = EXCLUDED.allocate_count,
			reallocate_count = EXCLUDED.reallocate_count,
			unallocate_count = EXCLUDED.unallocate_count,
			actions_count = EXCLUDED.actions_count,
			updated_at = now()
	`,
		multicall.ID,
		multicall.Indexer,
		int64(multicall.BlockNumber),
		multicall.GasUsed.String(),
		multicall.LegacyGasUsed.String(),
		multicall.GasSaved.String(),
		multicall.GasReduction.String(),
		int64(multicall.AllocateCount),
		int64(multicall.ReallocateCount),
		int64(multicall.UnallocateCount),
		int64(multicall.ActionsCount),
	); err != nil {
		return fmt.Errorf("upsert multicall: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO indexers (
			id, allocates_bundled, reallocates_bundled, unallocates_bundled, total_actions_bundled,
			total_gas_used, total_legacy_gas_used, total_gas_saved, gas_reduction,
			multicall_transactions, avg_gas_saved_per_multicall, avg_actions_per_multicall, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8::numeric,$9::numeric,$10,$11::numeric,$12::numeric,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			allocates_bundled = EXCLUDED.allocates_bundled,
			reallocates_bundled = EXCLUDED.reallocates_bundled,
			unallocates_bundled = EXCLUDED.unallocates_bundled,
			total_actions_bundled = EXCLUDED.total_actions_bundled,
			total_gas_used = EXCLUDED.total_gas_used,
			total_legacy_gas_used = EXCLUDED.total_legacy_gas_used,
			total_gas_saved = EXCLUDED.total_gas_saved,
			gas_reduction = EXCLUDED.gas_reduction,
			multicall_transactions = EXCLUDED.multicall_transactions,
			avg_gas_saved_per_multicall = EXCLUDED.avg_gas_saved_per_multicall,
			avg_actions_per_multicall = EXCLUDED.avg_actions_per_multicall,
			updated_at = now()
	`,
		indexer.ID,
		int64(indexer.AllocatesBundled),
		int64(indexer.ReallocatesBundled),
		int64(indexer.UnallocatesBundled),
		int64(indexer.TotalActionsBundled),
		indexer.TotalGasUsed.String(),
		indexer.TotalLegacyGasUsed.String(),
		indexer.TotalGasSaved.String(),
		indexer.GasReduction.String(),
		int64(indexer.MulticallTransactions),
		indexer.AvgGasSavedPerMulticall.String(),
		indexer.AvgActionsPerMulticall.String(),
	); err != nil {
		return fmt.Errorf("upsert indexer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsProcessed reports whether the event was already folded into the aggregates.
func (s *Store) IsProcessed(ctx context.Context, ref model.EventRef) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM processed_events WHERE tx_hash=$1 AND log_index=$2)
	`, ref.TxHash, int64(ref.LogIndex))
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
