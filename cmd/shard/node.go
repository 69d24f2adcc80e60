package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LedgerRouter/internal/config"
	"LedgerRouter/internal/logger"
	"LedgerRouter/internal/metrics"
	"LedgerRouter/internal/network"
	"LedgerRouter/internal/shard"
	"LedgerRouter/internal/snapshot"
	"LedgerRouter/internal/storage"
)

// Node is a running shard process.
type Node struct {
	cfg     *config.ShardConfig // cfg is the startup configuration
	storage *storage.Storage    // storage holds this shard's spent key images
	network *network.Node       // network answers router requests
	metrics *metrics.Metrics    // metrics counts lookups
	http    *http.Server        // http serves /metrics when enabled
}

// NewNode opens storage, imports the configured snapshot and prepares the
// QUIC listener.
func NewNode(cfg *config.ShardConfig, key ed25519.PrivateKey) (*Node, error) {
	n := &Node{cfg: cfg, metrics: metrics.New()}

	db, err := storage.New(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("open storage:\n%w", err)
	}
	n.storage = db

	if cfg.Snapshot != "" {
		if err := n.importSnapshot(cfg.Snapshot); err != nil {
			n.Close()
			return nil, err
		}
	}

	netNode, err := network.NewNode(network.Config{
		PrivateKey: key,
		ListenAddr: cfg.QUICAddress,
	})
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("create network:\n%w", err)
	}
	n.network = netNode

	handler := shard.NewHandler(cfg.ID, db)
	handler.SetMetrics(n.metrics)
	netNode.OnRequest(handler.HandleRequest)

	return n, nil
}

// importSnapshot loads a snapshot file into storage.
func (n *Node) importSnapshot(path string) error {
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot:\n%w", err)
	}

	count, err := snapshot.Import(n.storage, data)
	if err != nil {
		return fmt.Errorf("import snapshot %s:\n%w", path, err)
	}

	logger.Info("snapshot imported", "path", path, "records", count, logger.Timed(start))

	return nil
}

// Run starts the listener and blocks until a signal.
func (n *Node) Run() error {
	if err := n.network.Start(); err != nil {
		n.Close()
		return fmt.Errorf("start network:\n%w", err)
	}

	records, err := n.storage.Count()
	if err != nil {
		n.Close()
		return fmt.Errorf("count records:\n%w", err)
	}

	logger.Info("shard listening", "id", n.cfg.ID, "addr", n.network.Addr(), "records", records)

	if n.cfg.MetricsAddress != "" {
		n.startMetrics()
	}

	return n.waitForShutdown()
}

// startMetrics serves /metrics and /health.
func (n *Node) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", n.metrics.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	n.http = &http.Server{
		Addr:         n.cfg.MetricsAddress,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics listener started", "addr", n.cfg.MetricsAddress)

		if err := n.http.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
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
	if n.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		n.http.Shutdown(ctx)
		cancel()
	}

	if n.network != nil {
		n.network.Close()
	}

	if n.storage != nil {
		n.storage.Close()
	}

	return nil
}
