package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EventRecord is the JSONL archive form of an AllocationEvent.
type EventRecord struct {
	ChainID     uint64           `json:"chain_id"`
	BlockNumber uint64           `json:"block_number"`
	TxHash      string           `json:"tx_hash"`
	From        string           `json:"from"`
	GasUsed     string           `json:"gas_used"`
	LogIndex    uint64           `json:"log_index"`
	Event       string           `json:"event"`
	Logs        []LogEntryRecord `json:"logs"`
	IngestedAt  string           `json:"ingested_at"`
}

// LogEntryRecord is the archived form of a receipt log.
type LogEntryRecord struct {
	LogIndex uint64   `json:"log_index"`
	Topics   []string `json:"topics"`
}

// NewEventRecord flattens an event for archiving.
func NewEventRecord(chainID uint64, event AllocationEvent, ingestedAt string) EventRecord {
	logs := make([]LogEntryRecord, 0, len(event.Tx.Logs))
	for _, entry := range event.Tx.Logs {
		topics := make([]string, 0, len(entry.Topics))
		for _, topic := range entry.Topics {
			topics = append(topics, topic.Hex())
		}
		logs = append(logs, LogEntryRecord{LogIndex: entry.LogIndex, Topics: topics})
	}

	gasUsed := "0"
	if event.Tx.GasUsed != nil {
		gasUsed = event.Tx.GasUsed.String()
	}

	return EventRecord{
		ChainID:     chainID,
		BlockNumber: event.Tx.BlockNumber,
		TxHash:      event.Tx.Hash.Hex(),
		From:        event.Tx.From.Hex(),
		GasUsed:     gasUsed,
		LogIndex:    event.LogIndex,
		Event:       event.Kind.String(),
		Logs:        logs,
		IngestedAt:  ingestedAt,
	}
}

// AllocationEvent rebuilds the event from its archived form.
func (r EventRecord) AllocationEvent() (AllocationEvent, error) {
	kind, err := ParseEventKind(r.Event)
	if err != nil {
		return AllocationEvent{}, err
	}
	if !common.IsHexAddress(r.From) {
		return AllocationEvent{}, fmt.Errorf("invalid from address: %s", r.From)
	}
	txHash, err := parseHash(r.TxHash)
	if err != nil {
		return AllocationEvent{}, fmt.Errorf("tx hash: %w", err)
	}
	gasUsed, ok := new(big.Int).SetString(r.GasUsed, 10)
	if !ok {
		return AllocationEvent{}, fmt.Errorf("invalid gas used: %s", r.GasUsed)
	}

	logs := make([]LogEntry, 0, len(r.Logs))
	for _, entry := range r.Logs {
		topics := make([]common.Hash, 0, len(entry.Topics))
		for _, topic := range entry.Topics {
			hash, err := parseHash(topic)
			if err != nil {
				return AllocationEvent{}, fmt.Errorf("log %d topic: %w", entry.LogIndex, err)
			}
			topics = append(topics, hash)
		}
		logs = append(logs, LogEntry{LogIndex: entry.LogIndex, Topics: topics})
	}

	return AllocationEvent{
		Kind:     kind,
		LogIndex: r.LogIndex,
		Tx: TransactionContext{
			Hash:        txHash,
			From:        common.HexToAddress(r.From),
			BlockNumber: r.BlockNumber,
			GasUsed:     gasUsed,
			Logs:        logs,
		},
	}, nil
}

// ParseEventKind accepts the archived event name.
func ParseEventKind(name string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "create", "allocationcreated":
		return EventKindCreate, nil
	case "close", "allocationclosed":
		return EventKindClose, nil
	default:
		return 0, fmt.Errorf("unsupported event: %s", name)
	}
}

// IndexerID is the store key for an actor address.
func IndexerID(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// MulticallID is the store key for a transaction hash.
func MulticallID(hash common.Hash) string {
	return hash.Hex()
}

func parseHash(input string) (common.Hash, error) {
	data, err := hexutil.Decode(input)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid hash %s: %w", input, err)
	}
	if len(data) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash length: %s", input)
	}
	return common.BytesToHash(data), nil
}
