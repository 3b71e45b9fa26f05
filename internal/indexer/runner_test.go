package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"multicallScope/internal/handler"
	"multicallScope/internal/model"
	"multicallScope/internal/staking"
	"multicallScope/internal/storage"
)

var (
	stakingAddr = common.HexToAddress("0xF55041E37E12cD407ad00CE2910B8269B01263b9")
	indexerAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	deployment1 = common.HexToHash("0xd1")
	deployment2 = common.HexToHash("0xd2")
	deployment3 = common.HexToHash("0xd3")
)

type fakeChain struct {
	receipts     []*types.Receipt
	filterCalls  int
	receiptCalls int
	failFilter   int
}

func (f *fakeChain) GetChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	var latest uint64
	for _, receipt := range f.receipts {
		if n := receipt.BlockNumber.Uint64(); n > latest {
			latest = n
		}
	}
	return latest, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.filterCalls++
	if f.failFilter > 0 {
		f.failFilter--
		return nil, fmt.Errorf("rpc unavailable")
	}

	var logs []types.Log
	// Newest first so the runner has to sort.
	for i := len(f.receipts) - 1; i >= 0; i-- {
		receipt := f.receipts[i]
		block := receipt.BlockNumber.Uint64()
		if block < fromBlock || block > toBlock {
			continue
		}
		for j := len(receipt.Logs) - 1; j >= 0; j-- {
			log := receipt.Logs[j]
			if !containsAddress(addresses, log.Address) || !containsHash(topic0, log.Topics[0]) {
				continue
			}
			logs = append(logs, *log)
		}
	}
	return logs, nil
}

func (f *fakeChain) TransactionContext(_ context.Context, txHash common.Hash) (model.TransactionContext, error) {
	f.receiptCalls++
	for _, receipt := range f.receipts {
		if receipt.TxHash == txHash {
			return model.NewTransactionContext(receipt, indexerAddr), nil
		}
	}
	return model.TransactionContext{}, fmt.Errorf("receipt not found: %s", txHash.Hex())
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, item := range list {
		if item == addr {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, hash common.Hash) bool {
	for _, item := range list {
		if item == hash {
			return true
		}
	}
	return false
}

func receipt(txHash string, block uint64, txIndex uint, gasUsed uint64, topics ...[]common.Hash) *types.Receipt {
	hash := common.HexToHash(txHash)
	logs := make([]*types.Log, 0, len(topics))
	for i, t := range topics {
		logs = append(logs, &types.Log{
			Address:     stakingAddr,
			Topics:      t,
			BlockNumber: block,
			TxHash:      hash,
			TxIndex:     txIndex,
			Index:       uint(i),
		})
	}
	return &types.Receipt{
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(block),
		GasUsed:     gasUsed,
		Logs:        logs,
	}
}

func allocationTopics(topic0, deployment common.Hash) []common.Hash {
	return []common.Hash{topic0, common.BytesToHash(indexerAddr.Bytes()), deployment, common.HexToHash("0xa110c")}
}

func newTestChain(t *testing.T) (*fakeChain, *staking.Events) {
	t.Helper()
	events, err := staking.NewEvents(staking.EventsConfig{})
	require.NoError(t, err)
	stakingABI, err := staking.StakingABI()
	require.NoError(t, err)
	created := stakingABI.Events[staking.EventAllocationCreated].ID
	closed := stakingABI.Events[staking.EventAllocationClosed].ID

	return &fakeChain{
		receipts: []*types.Receipt{
			receipt("0xaa", 10, 0, 500000,
				allocationTopics(closed, deployment1),
				allocationTopics(closed, deployment2),
				allocationTopics(created, deployment1),
				allocationTopics(created, deployment3),
			),
			receipt("0xbb", 11, 3, 300000,
				allocationTopics(created, deployment2),
			),
		},
	}, events
}

func TestRunnerFoldsMulticallTransactions(t *testing.T) {
	ctx := context.Background()
	source, events := newTestChain(t)
	store := storage.NewMemoryStore()
	archivePath := filepath.Join(t.TempDir(), "events.jsonl")
	checkpoint := &StoreCheckpoint{Store: store, Name: "run"}

	runner := NewRunner(RunConfig{
		FromBlock:  10,
		ToBlock:    14,
		Addresses:  []common.Address{stakingAddr},
		BatchSize:  2,
		Checkpoint: checkpoint,
	}, source, events, handler.New(store, nil, zap.NewNop()), storage.NewJsonlStorage(archivePath), zap.NewNop())
	require.NoError(t, runner.Run(ctx))

	multicalls, indexers := store.Counts()
	assert.Equal(t, 1, multicalls)
	assert.Equal(t, 1, indexers)
	assert.Equal(t, 2, source.receiptCalls)

	record, ok, err := store.LoadMulticall(ctx, model.MulticallID(common.HexToHash("0xaa")))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), record.AllocateCount)
	assert.Equal(t, uint64(1), record.ReallocateCount)
	assert.Equal(t, uint64(1), record.UnallocateCount)
	assert.Equal(t, uint64(3), record.ActionsCount)
	assert.Equal(t, "989538", record.LegacyGasUsed.String())
	assert.Equal(t, "489538", record.GasSaved.String())

	agg, ok, err := store.LoadIndexer(ctx, model.IndexerID(indexerAddr))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), agg.MulticallTransactions)
	assert.Equal(t, uint64(3), agg.TotalActionsBundled)
	assert.Equal(t, "500000", agg.TotalGasUsed.String())

	last, ok, err := checkpoint.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(14), last)

	var archived []model.EventRecord
	require.NoError(t, storage.ScanEventRecords(archivePath, func(r model.EventRecord) error {
		archived = append(archived, r)
		return nil
	}, nil))
	require.Len(t, archived, 5)
	assert.Equal(t, "close", archived[0].Event)
	assert.Equal(t, uint64(0), archived[0].LogIndex)
	assert.Equal(t, uint64(11), archived[4].BlockNumber)
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	source, events := newTestChain(t)
	store := storage.NewMemoryStore()
	checkpoint := &StoreCheckpoint{Store: store, Name: "run"}
	require.NoError(t, checkpoint.Save(ctx, 11))

	runner := NewRunner(RunConfig{
		FromBlock:  10,
		Addresses:  []common.Address{stakingAddr},
		BatchSize:  10,
		Checkpoint: checkpoint,
	}, source, events, handler.New(store, nil, nil), nil, nil)
	require.NoError(t, runner.Run(ctx))

	assert.Equal(t, 0, source.filterCalls)
	multicalls, _ := store.Counts()
	assert.Equal(t, 0, multicalls)
}

func TestRunnerRetriesFilterLogs(t *testing.T) {
	source, events := newTestChain(t)
	source.failFilter = 2
	store := storage.NewMemoryStore()

	runner := NewRunner(RunConfig{
		FromBlock:    10,
		ToBlock:      11,
		Addresses:    []common.Address{stakingAddr},
		BatchSize:    10,
		MaxRetries:   2,
		RetryBackoff: 1,
	}, source, events, handler.New(store, nil, nil), nil, nil)
	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, 3, source.filterCalls)

	source.failFilter = 5
	runner = NewRunner(RunConfig{
		FromBlock:    10,
		ToBlock:      11,
		Addresses:    []common.Address{stakingAddr},
		BatchSize:    10,
		MaxRetries:   1,
		RetryBackoff: 1,
	}, source, events, handler.New(storage.NewMemoryStore(), nil, nil), nil, nil)
	assert.ErrorContains(t, runner.Run(context.Background()), "rpc unavailable")
}

func TestRunnerValidatesConfig(t *testing.T) {
	source, events := newTestChain(t)
	h := handler.New(storage.NewMemoryStore(), nil, nil)

	err := NewRunner(RunConfig{Addresses: []common.Address{stakingAddr}}, source, events, h, nil, nil).Run(context.Background())
	assert.ErrorContains(t, err, "batch size")

	err = NewRunner(RunConfig{BatchSize: 1}, source, events, h, nil, nil).Run(context.Background())
	assert.ErrorContains(t, err, "address")
}

func TestReplayMatchesLiveRun(t *testing.T) {
	ctx := context.Background()
	source, events := newTestChain(t)
	archivePath := filepath.Join(t.TempDir(), "events.jsonl")
	live := storage.NewMemoryStore()

	runner := NewRunner(RunConfig{
		FromBlock: 10,
		ToBlock:   11,
		Addresses: []common.Address{stakingAddr},
		BatchSize: 10,
	}, source, events, handler.New(live, nil, nil), storage.NewJsonlStorage(archivePath), nil)
	require.NoError(t, runner.Run(ctx))

	replayed := storage.NewMemoryStore()
	h := handler.New(replayed, nil, nil)
	stats, err := Replay(ctx, archivePath, h, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Total: 5, Applied: 4, Ignored: 1}, stats)

	want := indexerJSON(t, live)
	assert.JSONEq(t, want, indexerJSON(t, replayed))

	// A second pass over the same archive changes nothing.
	stats, err = Replay(ctx, archivePath, h, nil)
	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Total: 5, Skipped: 4, Ignored: 1}, stats)
	assert.JSONEq(t, want, indexerJSON(t, replayed))
}

func indexerJSON(t *testing.T, store *storage.MemoryStore) string {
	t.Helper()
	agg, ok, err := store.LoadIndexer(context.Background(), model.IndexerID(indexerAddr))
	require.NoError(t, err)
	require.True(t, ok)
	data, err := json.Marshal(agg)
	require.NoError(t, err)
	return string(data)
}

func TestReplayCountsBrokenLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	archive := storage.NewJsonlStorage(path)
	require.NoError(t, archive.PutEventBatch([]model.EventRecord{{
		TxHash:   "0x01",
		From:     indexerAddr.Hex(),
		GasUsed:  "1",
		Event:    "create",
		LogIndex: 0,
	}}))

	stats, err := Replay(context.Background(), path, handler.New(storage.NewMemoryStore(), nil, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Failed)
}
