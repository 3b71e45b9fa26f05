// Package multicall detects batched allocation transactions and classifies the
// action behind each allocation event from the adjacency of receipt logs.
package multicall

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"multicallScope/internal/model"
)

var (
	// ErrLogNotFound is returned when the event's log index is missing from the receipt.
	ErrLogNotFound = errors.New("log not found in receipt")
	// ErrUnexpectedTopology is returned when a close event has more than one sibling
	// touching the same subject. The action still resolves to unknown.
	ErrUnexpectedTopology = errors.New("more than 2 events affecting same subject, expected max is 2")
)

// FindLog returns the log whose LogIndex equals logIndex.
func FindLog(logs []model.LogEntry, logIndex uint64) (model.LogEntry, error) {
	for _, entry := range logs {
		if entry.LogIndex == logIndex {
			return entry, nil
		}
	}
	return model.LogEntry{}, fmt.Errorf("log index %d: %w", logIndex, ErrLogNotFound)
}

// IsMulticall reports whether any other log in the transaction shares topic0.
// Two merged top-level calls are indistinguishable from a batched call here.
func IsMulticall(logs []model.LogEntry, logIndex uint64, topic0 common.Hash) bool {
	for _, entry := range logs {
		if entry.LogIndex == logIndex || len(entry.Topics) == 0 {
			continue
		}
		if entry.Topics[0] == topic0 {
			return true
		}
	}
	return false
}

// CountSiblings counts other logs whose third topic equals subject. Logs with
// fewer than three topics are never counted.
func CountSiblings(logs []model.LogEntry, subject common.Hash, logIndex uint64) int {
	count := 0
	for _, entry := range logs {
		if entry.LogIndex == logIndex {
			continue
		}
		if other, ok := entry.Subject(); ok && other == subject {
			count++
		}
	}
	return count
}

// Classify maps an allocation event to the action it was emitted from.
//
//	close,  0 siblings -> unallocate
//	close,  1 sibling  -> reallocate
//	close, 2+ siblings -> unknown (ErrUnexpectedTopology)
//	create, 0 siblings -> allocate
//	create, 1+ siblings -> unknown
//
// A reallocation emits a close and a create on the same subject; only the close
// is credited.
func Classify(kind model.EventKind, logs []model.LogEntry, subject common.Hash, logIndex uint64) (model.ActionKind, error) {
	siblings := CountSiblings(logs, subject, logIndex)

	switch kind {
	case model.EventKindClose:
		switch siblings {
		case 0:
			return model.ActionUnallocate, nil
		case 1:
			return model.ActionReallocate, nil
		default:
			return model.ActionUnknown, fmt.Errorf("subject %s has %d siblings: %w", subject.Hex(), siblings, ErrUnexpectedTopology)
		}
	case model.EventKindCreate:
		if siblings == 0 {
			return model.ActionAllocate, nil
		}
		return model.ActionUnknown, nil
	default:
		return model.ActionUnknown, fmt.Errorf("unsupported event kind %d", kind)
	}
}
