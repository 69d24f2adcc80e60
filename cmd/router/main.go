package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"LedgerRouter/internal/config"
	"LedgerRouter/internal/logger"
)

func main() {
	logger.Init()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run() error {
	f := parseFlags()

	cfg, err := loadConfig(f)
	if err != nil {
		return fmt.Errorf("load config:\n%w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	key, err := config.LoadOrGenerateKey(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load key:\n%w", err)
	}

	node, err := NewNode(cfg, key, f.configPath)
	if err != nil {
		return fmt.Errorf("create router:\n%w", err)
	}

	printStartupInfo(cfg, key)

	return node.Run()
}

// printStartupInfo displays router configuration at startup.
func printStartupInfo(cfg *config.RouterConfig, key ed25519.PrivateKey) {
	pubKey := key.Public().(ed25519.PublicKey)

	logger.Info("starting ledger router",
		"pubkey", hex.EncodeToString(pubKey),
		"http", cfg.HTTPAddress,
		"shards", len(cfg.Shards),
		"max_batch", cfg.MaxBatchSize,
		"shard_timeout", cfg.ShardTimeout,
	)
}
