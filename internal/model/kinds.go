package model

// EventKind identifies which allocation event triggered processing.
type EventKind uint8

const (
	EventKindCreate EventKind = iota
	EventKindClose
)

func (k EventKind) String() string {
	switch k {
	case EventKindCreate:
		return "create"
	case EventKindClose:
		return "close"
	default:
		return "invalid"
	}
}

// ActionKind is the high-level action an allocation event was emitted from.
type ActionKind uint8

const (
	ActionUnknown ActionKind = iota
	ActionAllocate
	ActionReallocate
	ActionUnallocate
)

func (k ActionKind) String() string {
	switch k {
	case ActionAllocate:
		return "allocate"
	case ActionReallocate:
		return "reallocate"
	case ActionUnallocate:
		return "unallocate"
	default:
		return "unknown"
	}
}

// AllocationEvent is a single allocation event delivered with its transaction.
type AllocationEvent struct {
	Kind     EventKind
	LogIndex uint64
	Tx       TransactionContext
}

// Ref identifies the event for exactly-once bookkeeping.
func (e AllocationEvent) Ref() EventRef {
	return EventRef{TxHash: e.Tx.Hash.Hex(), LogIndex: e.LogIndex}
}
