package aggregate

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multicallScope/internal/model"
	"multicallScope/internal/storage"
)

var (
	actor = common.HexToAddress("0x1111111111111111111111111111111111111111")
	txA   = common.HexToHash("0xaa")
	txB   = common.HexToHash("0xbb")
)

func assertCounterSum(t *testing.T, m *model.MulticallRecord) {
	t.Helper()
	assert.Equal(t, m.AllocateCount+m.ReallocateCount+m.UnallocateCount, m.ActionsCount)
}

func TestLoadOrCreatePairInitializes(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	pair, err := LoadOrCreatePair(ctx, store, 10, actor, txA, big.NewInt(150000))
	require.NoError(t, err)
	require.True(t, pair.Created)

	assert.Equal(t, txA.Hex(), pair.Multicall.ID)
	assert.Equal(t, model.IndexerID(actor), pair.Multicall.Indexer)
	assert.Equal(t, uint64(10), pair.Multicall.BlockNumber)
	assert.Equal(t, int64(model.BaseTxGas), pair.Multicall.LegacyGasUsed.Int64())
	assert.Equal(t, uint64(0), pair.Multicall.ActionsCount)

	assert.Equal(t, uint64(1), pair.Indexer.MulticallTransactions)
	assert.Equal(t, int64(150000), pair.Indexer.TotalGasUsed.Int64())
	assert.Equal(t, int64(model.BaseTxGas), pair.Indexer.TotalLegacyGasUsed.Int64())
}

func TestLoadOrCreatePairIsIdempotentPerTransaction(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	pair, err := LoadOrCreatePair(ctx, store, 10, actor, txA, big.NewInt(150000))
	require.NoError(t, err)
	pair.IncrementAction(model.ActionAllocate)
	require.NoError(t, pair.Save(ctx, store, model.EventRef{TxHash: txA.Hex(), LogIndex: 1}))

	again, err := LoadOrCreatePair(ctx, store, 10, actor, txA, big.NewInt(150000))
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, uint64(1), again.Indexer.MulticallTransactions)
	assert.Equal(t, int64(150000), again.Indexer.TotalGasUsed.Int64())
	assert.Equal(t, int64(model.BaseTxGas+model.LegacyAllocateGas), again.Indexer.TotalLegacyGasUsed.Int64())
	require.NoError(t, again.Save(ctx, store, model.EventRef{TxHash: txA.Hex(), LogIndex: 2}))

	multicalls, indexers := store.Counts()
	assert.Equal(t, 1, multicalls)
	assert.Equal(t, 1, indexers)
}

func TestIncrementActionAllocate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	pair, err := LoadOrCreatePair(ctx, store, 10, actor, txA, big.NewInt(150000))
	require.NoError(t, err)
	pair.IncrementAction(model.ActionAllocate)

	m := pair.Multicall
	assert.Equal(t, int64(300899), m.LegacyGasUsed.Int64())
	assert.Equal(t, int64(150899), m.GasSaved.Int64())
	assert.Equal(t, "0.5015", m.GasReduction.Round(4).String())
	assert.Equal(t, uint64(1), m.AllocateCount)
	assertCounterSum(t, m)

	i := pair.Indexer
	assert.Equal(t, uint64(1), i.AllocatesBundled)
	assert.Equal(t, uint64(1), i.TotalActionsBundled)
	assert.Equal(t, int64(150899), i.TotalGasSaved.Int64())
	assert.True(t, i.AvgGasSavedPerMulticall.Equal(decimal.NewFromInt(150899)))
	assert.True(t, i.AvgActionsPerMulticall.Equal(decimal.NewFromInt(1)))
}

func TestIncrementActionUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	pair, err := LoadOrCreatePair(ctx, storage.NewMemoryStore(), 10, actor, txA, big.NewInt(150000))
	require.NoError(t, err)

	before := pair.Multicall.Clone()
	beforeIndexer := pair.Indexer.Clone()
	pair.IncrementAction(model.ActionUnknown)

	assert.Equal(t, before, pair.Multicall)
	assert.Equal(t, beforeIndexer, pair.Indexer)
}

func TestIncrementActionMixedKeepsCounterSum(t *testing.T) {
	ctx := context.Background()
	pair, err := LoadOrCreatePair(ctx, storage.NewMemoryStore(), 10, actor, txA, big.NewInt(500000))
	require.NoError(t, err)

	kinds := []model.ActionKind{
		model.ActionAllocate,
		model.ActionUnknown,
		model.ActionReallocate,
		model.ActionUnallocate,
		model.ActionUnallocate,
	}
	previous := new(big.Int).Set(pair.Multicall.LegacyGasUsed)
	for _, kind := range kinds {
		pair.IncrementAction(kind)
		assertCounterSum(t, pair.Multicall)
		assert.True(t, pair.Multicall.LegacyGasUsed.Cmp(previous) >= 0)
		previous.Set(pair.Multicall.LegacyGasUsed)
	}

	want := int64(model.BaseTxGas + model.LegacyAllocateGas + model.LegacyReallocateGas + 2*model.LegacyUnallocateGas)
	assert.Equal(t, want, pair.Multicall.LegacyGasUsed.Int64())
	assert.Equal(t, uint64(4), pair.Multicall.ActionsCount)
	assert.Equal(t, uint64(2), pair.Indexer.UnallocatesBundled)
}

func TestGasSavedMayBeNegative(t *testing.T) {
	ctx := context.Background()
	pair, err := LoadOrCreatePair(ctx, storage.NewMemoryStore(), 10, actor, txA, big.NewInt(900000))
	require.NoError(t, err)
	pair.IncrementAction(model.ActionAllocate)

	assert.Equal(t, int64(300899-900000), pair.Multicall.GasSaved.Int64())
	assert.True(t, pair.Multicall.GasReduction.IsNegative())
}

func TestIndexerAveragesAcrossMulticalls(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first, err := LoadOrCreatePair(ctx, store, 10, actor, txA, big.NewInt(150000))
	require.NoError(t, err)
	first.IncrementAction(model.ActionAllocate)
	require.NoError(t, first.Save(ctx, store, model.EventRef{TxHash: txA.Hex(), LogIndex: 0}))

	// 21000 + 279899 - 200899 = 100000 saved.
	second, err := LoadOrCreatePair(ctx, store, 11, actor, txB, big.NewInt(200899))
	require.NoError(t, err)
	second.IncrementAction(model.ActionAllocate)
	require.NoError(t, second.Save(ctx, store, model.EventRef{TxHash: txB.Hex(), LogIndex: 0}))

	assert.Equal(t, int64(100000), second.Multicall.GasSaved.Int64())

	indexer, ok, err := store.LoadIndexer(ctx, model.IndexerID(actor))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), indexer.MulticallTransactions)
	assert.Equal(t, int64(250899), indexer.TotalGasSaved.Int64())
	assert.True(t, indexer.AvgGasSavedPerMulticall.Equal(decimal.RequireFromString("125449.5")))
	assert.True(t, indexer.AvgActionsPerMulticall.Equal(decimal.NewFromInt(1)))
}

func TestGetOrInitReturnsStoredRecords(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	id := model.MulticallID(txA)

	inits := 0
	newRecord := func() *model.MulticallRecord {
		inits++
		return model.NewMulticallRecord(id, model.IndexerID(actor), 1, big.NewInt(100))
	}

	record, existed, err := GetOrInitMulticall(ctx, store, id, newRecord)
	require.NoError(t, err)
	assert.False(t, existed)
	indexer, existed, err := GetOrInitIndexer(ctx, store, model.IndexerID(actor))
	require.NoError(t, err)
	assert.False(t, existed)

	record.AllocateCount = 4
	indexer.AllocatesBundled = 4
	require.NoError(t, store.SavePair(ctx, record, indexer, model.EventRef{TxHash: id}))

	record, existed, err = GetOrInitMulticall(ctx, store, id, newRecord)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, uint64(4), record.AllocateCount)
	assert.Equal(t, 1, inits)

	indexer, existed, err = GetOrInitIndexer(ctx, store, model.IndexerID(actor))
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, uint64(4), indexer.AllocatesBundled)
}
