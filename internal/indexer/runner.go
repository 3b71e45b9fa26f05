package indexer

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"multicallScope/internal/handler"
	"multicallScope/internal/model"
	"multicallScope/internal/staking"
	"multicallScope/internal/storage"
)

// ChainSource is the subset of the chain client used by the runner.
type ChainSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	TransactionContext(ctx context.Context, txHash common.Hash) (model.TransactionContext, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock    uint64
	ToBlock      uint64
	Addresses    []common.Address
	BatchSize    uint64
	Checkpoint   Checkpointer
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner pulls allocation logs from the chain and feeds them to the handler
// one event at a time, in block, transaction and log order.
type Runner struct {
	cfg     RunConfig
	chain   ChainSource
	events  *staking.Events
	handler *handler.Handler
	archive storage.Archive
	logger  *zap.Logger
}

// NewRunner builds a Runner with its dependencies. archive may be nil.
func NewRunner(cfg RunConfig, chainSource ChainSource, events *staking.Events, h *handler.Handler, archive storage.Archive, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		chain:   chainSource,
		events:  events,
		handler: h,
		archive: archive,
		logger:  logger,
	}
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.handler == nil || r.events == nil {
		return fmt.Errorf("handler is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.cfg.Checkpoint != nil {
		last, ok, err := r.cfg.Checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stats, err := r.processRange(ctx, chainIDValue, blockRange)
		if err != nil {
			return err
		}

		if r.cfg.Checkpoint != nil {
			if err := r.cfg.Checkpoint.Save(ctx, blockRange.To); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
		}

		r.logger.Info("batch complete",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Uint64("blocks", blockRange.Blocks()),
			zap.Int("events", stats.Events),
			zap.Int("applied", stats.Applied),
			zap.Int("ignored", stats.Ignored),
			zap.Int("skipped", stats.Skipped),
		)
	}

	return nil
}

// BatchStats counts handler outcomes for one block range.
type BatchStats struct {
	Events  int
	Applied int
	Ignored int
	Skipped int
}

func (r *Runner) processRange(ctx context.Context, chainID uint64, blockRange BlockRange) (BatchStats, error) {
	var stats BatchStats
	r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

	logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
	if err != nil {
		return stats, fmt.Errorf("filter logs: %w", err)
	}
	sortLogs(logs)

	ingestedAt := time.Now().UTC().Format(time.RFC3339Nano)
	txContexts := make(map[common.Hash]model.TransactionContext)
	seen := make(map[string]struct{}, len(logs))
	records := make([]model.EventRecord, 0, len(logs))

	for _, log := range logs {
		if log.Removed || len(log.Topics) == 0 {
			continue
		}
		kind, ok := r.events.KindOf(log.Topics[0])
		if !ok {
			continue
		}
		id := fmt.Sprintf("%s:%d", log.TxHash.Hex(), log.Index)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		txCtx, ok := txContexts[log.TxHash]
		if !ok {
			txCtx, err = r.transactionContextWithRetry(ctx, log.TxHash)
			if err != nil {
				return stats, fmt.Errorf("transaction %s: %w", log.TxHash.Hex(), err)
			}
			txContexts[log.TxHash] = txCtx
		}

		event := model.AllocationEvent{Kind: kind, LogIndex: uint64(log.Index), Tx: txCtx}
		result, err := r.handleWithRetry(ctx, event)
		if err != nil {
			return stats, fmt.Errorf("handle %s: %w", id, err)
		}

		stats.Events++
		switch result.Outcome {
		case handler.OutcomeApplied:
			stats.Applied++
		case handler.OutcomeIgnored:
			stats.Ignored++
		default:
			stats.Skipped++
		}
		records = append(records, model.NewEventRecord(chainID, event, ingestedAt))
	}

	if r.archive != nil {
		if err := r.archive.PutEventBatch(records); err != nil {
			return stats, fmt.Errorf("archive events: %w", err)
		}
	}
	return stats, nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, r.events.Topic0s())
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) transactionContextWithRetry(ctx context.Context, txHash common.Hash) (model.TransactionContext, error) {
	var txCtx model.TransactionContext
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		txCtx, err = r.chain.TransactionContext(ctx, txHash)
		if err != nil {
			r.logger.Warn("receipt fetch failed", zap.Error(err), zap.String("tx_hash", txHash.Hex()))
		}
		return err
	})
	return txCtx, err
}

// handleWithRetry only retries storage failures; SavePair is atomic so a
// failed attempt leaves nothing behind.
func (r *Runner) handleWithRetry(ctx context.Context, event model.AllocationEvent) (handler.Result, error) {
	var result handler.Result
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		result, err = r.handler.Handle(ctx, event)
		if err != nil {
			r.logger.Warn("handle event failed", zap.Error(err), zap.String("tx_hash", event.Tx.Hash.Hex()), zap.Uint64("log_index", event.LogIndex))
		}
		return err
	})
	return result, err
}

func sortLogs(logs []types.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		if logs[i].TxIndex != logs[j].TxIndex {
			return logs[i].TxIndex < logs[j].TxIndex
		}
		return logs[i].Index < logs[j].Index
	})
}
