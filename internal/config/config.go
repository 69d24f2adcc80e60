// Package config loads the YAML configuration of the router and shard
// daemons.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"LedgerRouter/internal/logger"
	"LedgerRouter/internal/protocol"
)

// Defaults.
const (
	DefaultHTTPAddress  = ":8080"
	DefaultQUICAddress  = ":9000"
	DefaultDataPath     = "./data"
	DefaultMaxBatchSize = 1000
	DefaultShardTimeout = 5 * time.Second
	DefaultLogLevel     = "info"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// ShardEndpoint names a shard and where to reach it.
type ShardEndpoint struct {
	ID      string `yaml:"id"`      // ID is the shard identifier used for placement and metrics
	Address string `yaml:"address"` // Address is the shard's QUIC address
}

// RouterConfig holds the router configuration.
type RouterConfig struct {
	HTTPAddress    string          `yaml:"http_address"`    // HTTPAddress is the HTTP API listen address
	KeyPath        string          `yaml:"key_path"`        // KeyPath is the ed25519 key file; empty for an ephemeral key
	MaxBatchSize   int             `yaml:"max_batch_size"`  // MaxBatchSize bounds the key images per request
	CollateWorkers int             `yaml:"collate_workers"` // CollateWorkers is the collation parallelism; 0 means GOMAXPROCS
	ShardTimeout   time.Duration   `yaml:"shard_timeout"`   // ShardTimeout bounds the fan-out of one batch
	LogLevel       string          `yaml:"log_level"`       // LogLevel is debug, info, warn or error
	Shards         []ShardEndpoint `yaml:"shards"`          // Shards is the shard set, in collation order
}

// ShardConfig holds the shard daemon configuration.
type ShardConfig struct {
	ID             string `yaml:"id"`              // ID is this shard's identifier
	QUICAddress    string `yaml:"quic_address"`    // QUICAddress is the QUIC listen address
	DataPath       string `yaml:"data_path"`       // DataPath is the pebble directory
	KeyPath        string `yaml:"key_path"`        // KeyPath is the ed25519 key file; empty for an ephemeral key
	Snapshot       string `yaml:"snapshot"`        // Snapshot is imported at startup when set
	MetricsAddress string `yaml:"metrics_address"` // MetricsAddress serves /metrics when set
	LogLevel       string `yaml:"log_level"`       // LogLevel is debug, info, warn or error
}

// LoadRouter reads, defaults and validates a router configuration file.
func LoadRouter(path string) (*RouterConfig, error) {
	cfg := &RouterConfig{}

	if err := readYAML(path, cfg); err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadShard reads, defaults and validates a shard configuration file.
func LoadShard(path string) (*ShardConfig, error) {
	cfg := &ShardConfig{}

	if err := readYAML(path, cfg); err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SetDefaults fills unset fields.
func (c *RouterConfig) SetDefaults() {
	if c.HTTPAddress == "" {
		c.HTTPAddress = DefaultHTTPAddress
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.ShardTimeout == 0 {
		c.ShardTimeout = DefaultShardTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks the router configuration.
func (c *RouterConfig) Validate() error {
	if c.MaxBatchSize < 0 || c.MaxBatchSize > protocol.MaxQueries {
		return fmt.Errorf("%w: max_batch_size must be between 1 and %d", ErrInvalid, protocol.MaxQueries)
	}

	if c.CollateWorkers < 0 {
		return fmt.Errorf("%w: collate_workers must not be negative", ErrInvalid)
	}

	if c.ShardTimeout < 0 {
		return fmt.Errorf("%w: shard_timeout must be positive", ErrInvalid)
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return ValidateShards(c.Shards)
}

// ValidateShards checks that every shard has an id and an address and that
// ids and addresses are unique. An empty shard set is valid.
func ValidateShards(shards []ShardEndpoint) error {
	ids := make(map[string]bool, len(shards))
	addrs := make(map[string]bool, len(shards))

	for i, s := range shards {
		if s.ID == "" {
			return fmt.Errorf("%w: shard %d has no id", ErrInvalid, i)
		}

		if s.Address == "" {
			return fmt.Errorf("%w: shard %s has no address", ErrInvalid, s.ID)
		}

		if ids[s.ID] {
			return fmt.Errorf("%w: duplicate shard id %s", ErrInvalid, s.ID)
		}

		if addrs[s.Address] {
			return fmt.Errorf("%w: duplicate shard address %s", ErrInvalid, s.Address)
		}

		ids[s.ID] = true
		addrs[s.Address] = true
	}

	return nil
}

// SetDefaults fills unset fields.
func (c *ShardConfig) SetDefaults() {
	if c.QUICAddress == "" {
		c.QUICAddress = DefaultQUICAddress
	}
	if c.DataPath == "" {
		c.DataPath = DefaultDataPath
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks the shard configuration.
func (c *ShardConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return nil
}

// readYAML decodes the file at path into out, rejecting unknown fields.
func readYAML(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file:\n%w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	// An empty file leaves every field to its default
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s:\n%w", path, err)
	}

	return nil
}
