package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"LedgerRouter/internal/config"
)

// flags holds the command-line overrides.
type flags struct {
	configPath   string        // configPath is the YAML file, also watched for shard set changes
	httpAddress  string        // httpAddress overrides http_address
	keyPath      string        // keyPath overrides key_path
	logLevel     string        // logLevel overrides log_level
	shards       string        // shards overrides the shard set ("id=addr,id=addr")
	shardTimeout time.Duration // shardTimeout overrides shard_timeout
	workers      int           // workers overrides collate_workers
	maxBatch     int           // maxBatch overrides max_batch_size
}

// parseFlags parses command-line flags.
func parseFlags() *flags {
	f := &flags{}

	flag.StringVar(&f.configPath, "config", "", "Router YAML config path (watched for shard set changes)")
	flag.StringVar(&f.httpAddress, "http", config.DefaultHTTPAddress, "HTTP API address")
	flag.StringVar(&f.keyPath, "key", "", "Ed25519 private key path (generates new if missing)")
	flag.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&f.shards, "shards", "", "Shard set as id=addr,id=addr")
	flag.DurationVar(&f.shardTimeout, "shard-timeout", config.DefaultShardTimeout, "Timeout of one batch fan-out")
	flag.IntVar(&f.workers, "collate-workers", 0, "Collation workers (0 = GOMAXPROCS)")
	flag.IntVar(&f.maxBatch, "max-batch", config.DefaultMaxBatchSize, "Maximum key images per request")
	flag.Parse()

	return f
}

// loadConfig builds the router config from the YAML file, if any, then
// applies the flags that were set explicitly.
func loadConfig(f *flags) (*config.RouterConfig, error) {
	cfg := &config.RouterConfig{}

	if f.configPath != "" {
		loaded, err := config.LoadRouter(f.configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	var overrideErr error

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "http":
			cfg.HTTPAddress = f.httpAddress
		case "key":
			cfg.KeyPath = f.keyPath
		case "log-level":
			cfg.LogLevel = f.logLevel
		case "shard-timeout":
			cfg.ShardTimeout = f.shardTimeout
		case "collate-workers":
			cfg.CollateWorkers = f.workers
		case "max-batch":
			cfg.MaxBatchSize = f.maxBatch
		case "shards":
			shards, err := parseShards(f.shards)
			if err != nil {
				overrideErr = err
				return
			}
			cfg.Shards = shards
		}
	})

	if overrideErr != nil {
		return nil, overrideErr
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseShards parses "id=addr,id=addr".
func parseShards(s string) ([]config.ShardEndpoint, error) {
	var shards []config.ShardEndpoint

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, addr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid shard %q: want id=addr", part)
		}

		shards = append(shards, config.ShardEndpoint{ID: id, Address: addr})
	}

	return shards, nil
}
