package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"LedgerRouter/internal/api"
	"LedgerRouter/internal/config"
	"LedgerRouter/internal/logger"
	"LedgerRouter/internal/metrics"
	"LedgerRouter/internal/network"
	"LedgerRouter/internal/router"
)

// Node is a running router process.
type Node struct {
	configPath string         // configPath is watched for shard set changes when set
	network    *network.Node  // network dials the shards
	router     *router.Router // router answers query batches
	api        *api.Server    // api serves HTTP clients

	ctx    context.Context    // ctx is cancelled on shutdown
	cancel context.CancelFunc // cancel stops the config watcher
}

// NewNode wires the router components.
func NewNode(cfg *config.RouterConfig, key ed25519.PrivateKey, configPath string) (*Node, error) {
	netNode, err := network.NewNode(network.Config{PrivateKey: key})
	if err != nil {
		return nil, fmt.Errorf("create network:\n%w", err)
	}

	m := metrics.New()

	r, err := router.New(router.NewQUICTransport(netNode), router.Config{
		Shards:       cfg.Shards,
		Timeout:      cfg.ShardTimeout,
		Workers:      cfg.CollateWorkers,
		MaxBatchSize: cfg.MaxBatchSize,
	}, m)
	if err != nil {
		netNode.Close()
		return nil, fmt.Errorf("create router:\n%w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		configPath: configPath,
		network:    netNode,
		router:     r,
		api:        api.New(cfg.HTTPAddress, r, m),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Run connects to the shards, serves the API and blocks until a signal.
func (n *Node) Run() error {
	n.router.Connect(n.ctx)

	if err := n.api.Start(); err != nil {
		n.Close()
		return fmt.Errorf("start api:\n%w", err)
	}

	if n.configPath != "" {
		go n.watchConfig()
	}

	return n.waitForShutdown()
}

// watchConfig applies shard set changes from the config file.
func (n *Node) watchConfig() {
	err := config.WatchRouter(n.ctx, n.configPath, func(cfg *config.RouterConfig) {
		if err := n.router.SetShards(cfg.Shards); err != nil {
			logger.Warn("shard set rejected", "error", err)
			return
		}

		n.router.Connect(n.ctx)
	})
	if err != nil {
		logger.Error("config watcher stopped", "error", err)
	}
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all components gracefully.
func (n *Node) Close() error {
	n.cancel()

	if n.api != nil {
		n.api.Stop()
	}

	if n.network != nil {
		n.network.Close()
	}

	return nil
}
