// Package handler folds allocation events into multicall aggregates.
//
// Events must be delivered one at a time; the handler reads and writes the
// store without locking.
package handler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"multicallScope/internal/aggregate"
	"multicallScope/internal/metrics"
	"multicallScope/internal/model"
	"multicallScope/internal/multicall"
)

// Outcome describes what happened to one event.
type Outcome uint8

const (
	// OutcomeIgnored: not part of a multicall, nothing was written.
	OutcomeIgnored Outcome = iota
	// OutcomeNotFound: the event's log is missing from the receipt.
	OutcomeNotFound
	// OutcomeMalformed: the log has no subject topic.
	OutcomeMalformed
	// OutcomeDuplicate: the event was already folded in.
	OutcomeDuplicate
	// OutcomeApplied: records were loaded, updated and saved.
	OutcomeApplied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeApplied:
		return "applied"
	default:
		return "invalid"
	}
}

// Result is returned for every handled event.
type Result struct {
	Outcome Outcome
	Action  model.ActionKind
	// NewMulticall is true when the event created the multicall record.
	NewMulticall bool
}

// Handler processes AllocationCreated and AllocationClosed events.
type Handler struct {
	store   aggregate.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(store aggregate.Store, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, metrics: m, logger: logger}
}

// Handle dispatches on the event kind.
func (h *Handler) Handle(ctx context.Context, event model.AllocationEvent) (Result, error) {
	switch event.Kind {
	case model.EventKindCreate:
		return h.HandleAllocationCreated(ctx, event)
	case model.EventKindClose:
		return h.HandleAllocationClosed(ctx, event)
	default:
		return Result{}, fmt.Errorf("unsupported event kind %d", event.Kind)
	}
}

func (h *Handler) HandleAllocationCreated(ctx context.Context, event model.AllocationEvent) (Result, error) {
	event.Kind = model.EventKindCreate
	return h.handle(ctx, event)
}

func (h *Handler) HandleAllocationClosed(ctx context.Context, event model.AllocationEvent) (Result, error) {
	event.Kind = model.EventKindClose
	return h.handle(ctx, event)
}

func (h *Handler) handle(ctx context.Context, event model.AllocationEvent) (Result, error) {
	tx := event.Tx
	fields := []zap.Field{
		zap.String("event", event.Kind.String()),
		zap.String("tx_hash", tx.Hash.Hex()),
		zap.Uint64("log_index", event.LogIndex),
	}

	entry, err := multicall.FindLog(tx.Logs, event.LogIndex)
	if err != nil {
		h.logger.Warn("event log not found in receipt", append(fields, zap.Error(err))...)
		return h.done(event, Result{Outcome: OutcomeNotFound}), nil
	}

	subject, ok := entry.Subject()
	if !ok {
		h.logger.Warn("allocation log has no subject topic", append(fields, zap.Int("topics", len(entry.Topics)))...)
		return h.done(event, Result{Outcome: OutcomeMalformed}), nil
	}

	if !multicall.IsMulticall(tx.Logs, event.LogIndex, entry.Topic0()) {
		h.logger.Debug("not a multicall", fields...)
		return h.done(event, Result{Outcome: OutcomeIgnored}), nil
	}

	ref := event.Ref()
	processed, err := h.store.IsProcessed(ctx, ref)
	if err != nil {
		return Result{}, fmt.Errorf("check processed %s: %w", ref.Key(), err)
	}
	if processed {
		h.logger.Debug("event already processed", fields...)
		return h.done(event, Result{Outcome: OutcomeDuplicate}), nil
	}

	h.logger.Info("multicall detected", append(fields, zap.String("indexer", model.IndexerID(tx.From)))...)

	pair, err := aggregate.LoadOrCreatePair(ctx, h.store, tx.BlockNumber, tx.From, tx.Hash, tx.GasUsed)
	if err != nil {
		return Result{}, err
	}

	action, err := multicall.Classify(event.Kind, tx.Logs, subject, event.LogIndex)
	if err != nil {
		if !errors.Is(err, multicall.ErrUnexpectedTopology) {
			return Result{}, err
		}
		h.logger.Warn("unexpected allocation topology", append(fields, zap.Error(err))...)
	}
	h.logger.Debug("classified allocation",
		append(fields,
			zap.String("subject", subject.Hex()),
			zap.Int("siblings", multicall.CountSiblings(tx.Logs, subject, event.LogIndex)),
			zap.String("action", action.String()),
		)...,
	)

	pair.IncrementAction(action)
	if err := pair.Save(ctx, h.store, ref); err != nil {
		return Result{}, fmt.Errorf("save multicall %s: %w", pair.Multicall.ID, err)
	}

	if pair.Created {
		h.metrics.IncMulticall()
	}
	h.metrics.IncAction(action.String())
	return h.done(event, Result{Outcome: OutcomeApplied, Action: action, NewMulticall: pair.Created}), nil
}

func (h *Handler) done(event model.AllocationEvent, result Result) Result {
	h.metrics.IncEvent(event.Kind.String(), result.Outcome.String())
	return result
}
