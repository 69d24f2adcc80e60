package main

import (
	"flag"

	"LedgerRouter/internal/config"
)

// flags holds the command-line overrides.
type flags struct {
	configPath     string // configPath is the YAML file
	id             string // id overrides id
	quicAddress    string // quicAddress overrides quic_address
	dataPath       string // dataPath overrides data_path
	keyPath        string // keyPath overrides key_path
	snapshot       string // snapshot overrides snapshot
	metricsAddress string // metricsAddress overrides metrics_address
	logLevel       string // logLevel overrides log_level
}

// parseFlags parses command-line flags.
func parseFlags() *flags {
	f := &flags{}

	flag.StringVar(&f.configPath, "config", "", "Shard YAML config path")
	flag.StringVar(&f.id, "id", "", "Shard identifier")
	flag.StringVar(&f.quicAddress, "quic", config.DefaultQUICAddress, "QUIC listen address")
	flag.StringVar(&f.dataPath, "data", config.DefaultDataPath, "Data directory path")
	flag.StringVar(&f.keyPath, "key", "", "Ed25519 private key path (generates new if missing)")
	flag.StringVar(&f.snapshot, "snapshot", "", "Snapshot file to import at startup")
	flag.StringVar(&f.metricsAddress, "metrics", "", "Metrics HTTP address (disabled if empty)")
	flag.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	return f
}

// loadConfig builds the shard config from the YAML file, if any, then
// applies the flags that were set explicitly.
func loadConfig(f *flags) (*config.ShardConfig, error) {
	cfg := &config.ShardConfig{}

	if f.configPath != "" {
		loaded, err := config.LoadShard(f.configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "id":
			cfg.ID = f.id
		case "quic":
			cfg.QUICAddress = f.quicAddress
		case "data":
			cfg.DataPath = f.dataPath
		case "key":
			cfg.KeyPath = f.keyPath
		case "snapshot":
			cfg.Snapshot = f.snapshot
		case "metrics":
			cfg.MetricsAddress = f.metricsAddress
		case "log-level":
			cfg.LogLevel = f.logLevel
		}
	})

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
