package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	In       string
	Store    StoreConfig
	LogLevel string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"in": "./data/events.jsonl",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		In:       v.GetString("in"),
		Store:    storeConfig(v),
		LogLevel: v.GetString("log-level"),
	}, nil
}

func (c ReplayConfig) Validate() error {
	if c.In == "" {
		return fmt.Errorf("in is required")
	}
	return c.Store.Validate()
}
