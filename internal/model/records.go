package model

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Legacy gas estimates per action, calibrated against single-action transactions.
const (
	BaseTxGas           = 21000
	LegacyAllocateGas   = 279899
	LegacyUnallocateGas = 266229
	LegacyReallocateGas = 422410
)

// LegacyGas returns the legacy-equivalent gas for an action, zero for unknown.
func LegacyGas(kind ActionKind) *big.Int {
	switch kind {
	case ActionAllocate:
		return big.NewInt(LegacyAllocateGas)
	case ActionReallocate:
		return big.NewInt(LegacyReallocateGas)
	case ActionUnallocate:
		return big.NewInt(LegacyUnallocateGas)
	default:
		return big.NewInt(0)
	}
}

// MulticallRecord summarizes one batched transaction.
type MulticallRecord struct {
	ID              string          `json:"id"`
	Indexer         string          `json:"indexer"`
	BlockNumber     uint64          `json:"block_number"`
	GasUsed         *big.Int        `json:"gas_used"`
	LegacyGasUsed   *big.Int        `json:"legacy_gas_used"`
	GasSaved        *big.Int        `json:"gas_saved"`
	GasReduction    decimal.Decimal `json:"gas_reduction"`
	AllocateCount   uint64          `json:"allocate_count"`
	ReallocateCount uint64          `json:"reallocate_count"`
	UnallocateCount uint64          `json:"unallocate_count"`
	ActionsCount    uint64          `json:"actions_count"`
}

// NewMulticallRecord seeds a record with the base transaction cost.
func NewMulticallRecord(id, indexer string, blockNumber uint64, gasUsed *big.Int) *MulticallRecord {
	used := big.NewInt(0)
	if gasUsed != nil {
		used.Set(gasUsed)
	}
	return &MulticallRecord{
		ID:            id,
		Indexer:       indexer,
		BlockNumber:   blockNumber,
		GasUsed:       used,
		LegacyGasUsed: big.NewInt(BaseTxGas),
		GasSaved:      big.NewInt(0),
		GasReduction:  decimal.Zero,
	}
}

// IndexerAggregate sums multicall statistics across every transaction of an indexer.
type IndexerAggregate struct {
	ID                      string          `json:"id"`
	AllocatesBundled        uint64          `json:"allocates_bundled"`
	ReallocatesBundled      uint64          `json:"reallocates_bundled"`
	UnallocatesBundled      uint64          `json:"unallocates_bundled"`
	TotalActionsBundled     uint64          `json:"total_actions_bundled"`
	TotalGasUsed            *big.Int        `json:"total_gas_used"`
	TotalLegacyGasUsed      *big.Int        `json:"total_legacy_gas_used"`
	TotalGasSaved           *big.Int        `json:"total_gas_saved"`
	GasReduction            decimal.Decimal `json:"gas_reduction"`
	MulticallTransactions   uint64          `json:"multicall_transactions"`
	AvgGasSavedPerMulticall decimal.Decimal `json:"avg_gas_saved_per_multicall"`
	AvgActionsPerMulticall  decimal.Decimal `json:"avg_actions_per_multicall"`
}

func NewIndexerAggregate(id string) *IndexerAggregate {
	return &IndexerAggregate{
		ID:                      id,
		TotalGasUsed:            big.NewInt(0),
		TotalLegacyGasUsed:      big.NewInt(0),
		TotalGasSaved:           big.NewInt(0),
		GasReduction:            decimal.Zero,
		AvgGasSavedPerMulticall: decimal.Zero,
		AvgActionsPerMulticall:  decimal.Zero,
	}
}

// EventRef identifies an allocation event by transaction hash and log index.
type EventRef struct {
	TxHash   string
	LogIndex uint64
}

func (r EventRef) Key() string {
	return fmt.Sprintf("%s:%d", r.TxHash, r.LogIndex)
}

// Clone returns a deep copy.
func (m *MulticallRecord) Clone() *MulticallRecord {
	if m == nil {
		return nil
	}
	out := *m
	out.GasUsed = cloneInt(m.GasUsed)
	out.LegacyGasUsed = cloneInt(m.LegacyGasUsed)
	out.GasSaved = cloneInt(m.GasSaved)
	return &out
}

// Clone returns a deep copy.
func (i *IndexerAggregate) Clone() *IndexerAggregate {
	if i == nil {
		return nil
	}
	out := *i
	out.TotalGasUsed = cloneInt(i.TotalGasUsed)
	out.TotalLegacyGasUsed = cloneInt(i.TotalLegacyGasUsed)
	out.TotalGasSaved = cloneInt(i.TotalGasSaved)
	return &out
}

func cloneInt(value *big.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(value)
}
