package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogEntry is one log emitted within a transaction. Topics[0] is the event
// discriminator and Topics[2], when present, is the subject the event concerns.
type LogEntry struct {
	LogIndex uint64
	Topics   []common.Hash
}

// Topic0 returns the discriminator, or the zero hash for anonymous logs.
func (l LogEntry) Topic0() common.Hash {
	if len(l.Topics) == 0 {
		return common.Hash{}
	}
	return l.Topics[0]
}

// Subject returns Topics[2] and whether the log is wide enough to carry one.
func (l LogEntry) Subject() (common.Hash, bool) {
	if len(l.Topics) < 3 {
		return common.Hash{}, false
	}
	return l.Topics[2], true
}

// TransactionContext is the receipt view of a single transaction.
type TransactionContext struct {
	Hash        common.Hash
	From        common.Address
	BlockNumber uint64
	GasUsed     *big.Int
	Logs        []LogEntry
}

// LogEntriesFromReceipt converts receipt logs, keeping their order.
func LogEntriesFromReceipt(receipt *types.Receipt) []LogEntry {
	if receipt == nil {
		return nil
	}
	entries := make([]LogEntry, 0, len(receipt.Logs))
	for _, log := range receipt.Logs {
		if log == nil {
			continue
		}
		topics := make([]common.Hash, len(log.Topics))
		copy(topics, log.Topics)
		entries = append(entries, LogEntry{
			LogIndex: uint64(log.Index),
			Topics:   topics,
		})
	}
	return entries
}

// NewTransactionContext builds a TransactionContext from a receipt and its sender.
func NewTransactionContext(receipt *types.Receipt, from common.Address) TransactionContext {
	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}
	return TransactionContext{
		Hash:        receipt.TxHash,
		From:        from,
		BlockNumber: blockNumber,
		GasUsed:     new(big.Int).SetUint64(receipt.GasUsed),
		Logs:        LogEntriesFromReceipt(receipt),
	}
}
