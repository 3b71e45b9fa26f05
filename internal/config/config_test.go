package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.String("rpc", "", "")
	fs.StringSlice("staking-address", nil, "")
	fs.Uint64("from", 0, "")
	fs.Uint64("to", 0, "")
	fs.String("store", "", "")
	fs.String("topic0-map", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadRunFlagsAndDefaults(t *testing.T) {
	flags := runFlags(t,
		"--rpc", "http://localhost:8545",
		"--staking-address", "0xF55041E37E12cD407ad00CE2910B8269B01263b9, ",
		"--from", "100",
		"--store", "memory",
		"--topic0-map", "0x01=close, bad, 0x02=create",
	)

	cfg, err := LoadRun("", flags)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, []string{"0xF55041E37E12cD407ad00CE2910B8269B01263b9"}, cfg.StakingAddresses)
	assert.Equal(t, uint64(100), cfg.FromBlock)
	assert.Equal(t, uint64(2000), cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.True(t, cfg.CheckpointEnabled)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, StoreConfig{Kind: StoreMemory, LevelDBPath: "./data/multicalls.db"}, cfg.Store)
	assert.Equal(t, map[string]string{"0x01": "close", "0x02": "create"}, cfg.Topic0Map)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRunEnvironment(t *testing.T) {
	t.Setenv("INDEXER_STORE", "Postgres")
	t.Setenv("INDEXER_PG_DSN", "postgres://indexer@localhost/multicalls")
	t.Setenv("INDEXER_BATCH_SIZE", "50")

	cfg, err := LoadRun("", runFlags(t, "--rpc", "http://node"))
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store.Kind)
	assert.Equal(t, "postgres://indexer@localhost/multicalls", cfg.Store.PGDSN)
	assert.Equal(t, uint64(50), cfg.BatchSize)
	assert.ErrorContains(t, cfg.Validate(), "staking-address")
}

func TestLoadRunConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc: http://archive:8545
staking-address:
  - 0xF55041E37E12cD407ad00CE2910B8269B01263b9
from: 20
to: 10
store: leveldb
topic0-map:
  "0xAB": close
`), 0o644))

	cfg, err := LoadRun(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xF55041E37E12cD407ad00CE2910B8269B01263b9"}, cfg.StakingAddresses)
	assert.Equal(t, map[string]string{"0xab": "close"}, cfg.Topic0Map)
	assert.ErrorContains(t, cfg.Validate(), "before from")

	_, err = LoadRun(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestStoreConfigValidate(t *testing.T) {
	assert.NoError(t, StoreConfig{Kind: StoreMemory}.Validate())
	assert.NoError(t, StoreConfig{Kind: StoreLevelDB, LevelDBPath: "db"}.Validate())
	assert.Error(t, StoreConfig{Kind: StoreLevelDB}.Validate())
	assert.Error(t, StoreConfig{Kind: StorePostgres}.Validate())
	assert.ErrorContains(t, StoreConfig{Kind: "redis"}.Validate(), "unsupported store")
}

func TestStatsConfigValidate(t *testing.T) {
	store := StoreConfig{Kind: StoreLevelDB, LevelDBPath: "db"}
	assert.Error(t, StatsConfig{Store: store}.Validate())
	assert.Error(t, StatsConfig{Indexer: "0x1", Tx: "0x2", Store: store}.Validate())
	assert.NoError(t, StatsConfig{Tx: "0x2", Store: store}.Validate())
	assert.Error(t, StatsConfig{Tx: "0x2", Store: StoreConfig{Kind: StoreMemory}}.Validate())
}

func TestLoadReplayDefaults(t *testing.T) {
	cfg, err := LoadReplay("", nil)
	require.NoError(t, err)
	assert.Equal(t, "./data/events.jsonl", cfg.In)
	assert.Equal(t, StoreLevelDB, cfg.Store.Kind)
	assert.NoError(t, cfg.Validate())
}
