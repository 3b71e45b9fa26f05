package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"multicallScope/internal/handler"
	"multicallScope/internal/model"
	"multicallScope/internal/storage"
)

// ReplayStats summarizes a replay.
type ReplayStats struct {
	Total   int
	Applied int
	Ignored int
	Skipped int
	Failed  int
}

// Replay folds an event archive through the handler in file order. Events
// already folded in are reported as skipped.
func Replay(ctx context.Context, path string, h *handler.Handler, logger *zap.Logger) (ReplayStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if h == nil {
		return ReplayStats{}, fmt.Errorf("handler is nil")
	}

	var stats ReplayStats
	err := storage.ScanEventRecords(path, func(record model.EventRecord) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stats.Total++
		event, err := record.AllocationEvent()
		if err != nil {
			stats.Failed++
			logger.Warn("decode archived event", zap.Error(err), zap.String("tx_hash", record.TxHash), zap.Uint64("log_index", record.LogIndex))
			return nil
		}

		result, err := h.Handle(ctx, event)
		if err != nil {
			return fmt.Errorf("handle %s: %w", event.Ref().Key(), err)
		}
		switch result.Outcome {
		case handler.OutcomeApplied:
			stats.Applied++
		case handler.OutcomeIgnored:
			stats.Ignored++
		default:
			stats.Skipped++
		}
		return nil
	}, func(line int, err error) {
		stats.Total++
		stats.Failed++
		logger.Warn("parse archive line", zap.Int("line", line), zap.Error(err))
	})
	if err != nil {
		return stats, err
	}

	logger.Info("replay complete",
		zap.Int("total", stats.Total),
		zap.Int("applied", stats.Applied),
		zap.Int("ignored", stats.Ignored),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}
