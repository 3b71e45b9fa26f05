package aggregate

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"multicallScope/internal/model"
)

// Pair holds the multicall record of one transaction and the aggregate of the
// indexer that sent it. Both are mutated together and saved together.
type Pair struct {
	Multicall *model.MulticallRecord
	Indexer   *model.IndexerAggregate
	// Created is true when this load initialized the multicall record.
	Created bool
}

// LoadOrCreatePair loads or initializes both records. The indexer is charged
// the transaction's real gas and the base legacy cost only when the multicall
// record is new.
func LoadOrCreatePair(ctx context.Context, store Store, blockNumber uint64, actor common.Address, txHash common.Hash, gasUsed *big.Int) (*Pair, error) {
	indexerID := model.IndexerID(actor)
	indexer, _, err := GetOrInitIndexer(ctx, store, indexerID)
	if err != nil {
		return nil, err
	}

	multicall, existed, err := GetOrInitMulticall(ctx, store, model.MulticallID(txHash), func() *model.MulticallRecord {
		return model.NewMulticallRecord(model.MulticallID(txHash), indexerID, blockNumber, gasUsed)
	})
	if err != nil {
		return nil, err
	}

	pair := &Pair{Multicall: multicall, Indexer: indexer, Created: !existed}
	if pair.Created {
		indexer.MulticallTransactions++
		indexer.TotalGasUsed.Add(indexer.TotalGasUsed, multicall.GasUsed)
		indexer.TotalLegacyGasUsed.Add(indexer.TotalLegacyGasUsed, big.NewInt(model.BaseTxGas))
		pair.recompute()
	}
	return pair, nil
}

// IncrementAction credits one classified action to both records. Unknown
// actions are ignored.
func (p *Pair) IncrementAction(kind model.ActionKind) {
	legacy := model.LegacyGas(kind)

	switch kind {
	case model.ActionAllocate:
		p.Multicall.AllocateCount++
		p.Indexer.AllocatesBundled++
	case model.ActionReallocate:
		p.Multicall.ReallocateCount++
		p.Indexer.ReallocatesBundled++
	case model.ActionUnallocate:
		p.Multicall.UnallocateCount++
		p.Indexer.UnallocatesBundled++
	case model.ActionUnknown:
		return
	default:
		return
	}

	p.Multicall.LegacyGasUsed.Add(p.Multicall.LegacyGasUsed, legacy)
	p.Indexer.TotalLegacyGasUsed.Add(p.Indexer.TotalLegacyGasUsed, legacy)
	p.Multicall.ActionsCount++
	p.Indexer.TotalActionsBundled++

	p.recompute()
}

// Save persists both records and the processed marker for ref.
func (p *Pair) Save(ctx context.Context, store Store, ref model.EventRef) error {
	return store.SavePair(ctx, p.Multicall, p.Indexer, ref)
}

func (p *Pair) recompute() {
	m := p.Multicall
	m.GasSaved = new(big.Int).Sub(m.LegacyGasUsed, m.GasUsed)
	m.GasReduction = ratio(m.GasSaved, m.LegacyGasUsed)

	i := p.Indexer
	i.TotalGasSaved = new(big.Int).Sub(i.TotalLegacyGasUsed, i.TotalGasUsed)
	i.GasReduction = ratio(i.TotalGasSaved, i.TotalLegacyGasUsed)
	multicalls := new(big.Int).SetUint64(i.MulticallTransactions)
	i.AvgGasSavedPerMulticall = ratio(i.TotalGasSaved, multicalls)
	i.AvgActionsPerMulticall = ratio(new(big.Int).SetUint64(i.TotalActionsBundled), multicalls)
}
