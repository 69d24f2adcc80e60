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
	cfg, err := loadConfig(parseFlags())
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

	node, err := NewNode(cfg, key)
	if err != nil {
		return fmt.Errorf("create shard:\n%w", err)
	}

	logger.Info("starting ledger shard",
		"id", cfg.ID,
		"pubkey", hex.EncodeToString(key.Public().(ed25519.PublicKey)),
		"quic", cfg.QUICAddress,
		"data", cfg.DataPath,
	)

	return node.Run()
}
