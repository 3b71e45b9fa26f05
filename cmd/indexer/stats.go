package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"multicallScope/internal/config"
	"multicallScope/internal/model"
)

func runStats(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadStats(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		record interface{}
		found  bool
	)
	if cfg.Indexer != "" {
		if !common.IsHexAddress(cfg.Indexer) {
			return fmt.Errorf("invalid indexer address: %s", cfg.Indexer)
		}
		id := model.IndexerID(common.HexToAddress(cfg.Indexer))
		record, found, err = store.LoadIndexer(ctx, id)
		if err != nil {
			return fmt.Errorf("load indexer %s: %w", id, err)
		}
	} else {
		id := model.MulticallID(common.HexToHash(cfg.Tx))
		record, found, err = store.LoadMulticall(ctx, id)
		if err != nil {
			return fmt.Errorf("load multicall %s: %w", id, err)
		}
	}
	if !found {
		return fmt.Errorf("no record found")
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(record)
}
