package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// StatsConfig holds configuration for the stats command.
type StatsConfig struct {
	Indexer  string
	Tx       string
	Store    StoreConfig
	LogLevel string
}

// LoadStats merges config file, environment variables, and flags into StatsConfig.
func LoadStats(cfgFile string, flags *pflag.FlagSet) (StatsConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return StatsConfig{}, err
	}

	return StatsConfig{
		Indexer:  v.GetString("indexer"),
		Tx:       v.GetString("tx"),
		Store:    storeConfig(v),
		LogLevel: v.GetString("log-level"),
	}, nil
}

// Validate requires exactly one lookup key.
func (c StatsConfig) Validate() error {
	if (c.Indexer == "") == (c.Tx == "") {
		return fmt.Errorf("exactly one of indexer or tx is required")
	}
	if c.Store.Kind == StoreMemory {
		return fmt.Errorf("the memory store holds no state between runs")
	}
	return c.Store.Validate()
}
