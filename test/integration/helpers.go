// Package integration runs a router against real shards over QUIC.
package integration

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"LedgerRouter/client"
	"LedgerRouter/internal/api"
	"LedgerRouter/internal/config"
	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/metrics"
	"LedgerRouter/internal/network"
	"LedgerRouter/internal/router"
	"LedgerRouter/internal/shard"
	"LedgerRouter/internal/snapshot"
	"LedgerRouter/internal/storage"
)

// ShardNode is a running in-process shard.
type ShardNode struct {
	id      string           // id is the shard identifier
	dataDir string           // dataDir holds the shard's storage
	storage *storage.Storage // storage holds the shard's spent set
	network *network.Node    // network answers router requests
	records int              // records is the number of imported spent records
}

// Addr returns the shard's QUIC address.
func (s *ShardNode) Addr() string { return s.network.Addr() }

// Stop closes the shard's listener and storage.
func (s *ShardNode) Stop() {
	if s.network != nil {
		s.network.Close()
		s.network = nil
	}

	if s.storage != nil {
		s.storage.Close()
		s.storage = nil
	}
}

// Cluster is a router with its shards and an HTTP front end.
type Cluster struct {
	Shards []*ShardNode   // Shards are the running shards, in collation order
	Router *router.Router // Router collates the shard answers
	Client *client.Client // Client talks to the router's HTTP API

	network *network.Node // network is the router's dial-only node
}

// clusterOpts holds configuration for a Cluster.
type clusterOpts struct {
	shards  int                  // shards is the number of shards to start
	timeout time.Duration        // timeout bounds one shard fan-out
	workers int                  // workers is the collation parallelism
	spent   []ledger.SpentRecord // spent is split across shards by placement
}

// ClusterOption configures cluster behavior.
type ClusterOption func(*clusterOpts)

// WithShards sets the number of shards.
func WithShards(n int) ClusterOption {
	return func(o *clusterOpts) { o.shards = n }
}

// WithTimeout sets the router's shard timeout.
func WithTimeout(d time.Duration) ClusterOption {
	return func(o *clusterOpts) { o.timeout = d }
}

// WithWorkers sets the collation parallelism.
func WithWorkers(n int) ClusterOption {
	return func(o *clusterOpts) { o.workers = n }
}

// WithSpent seeds the shards with spent records.
func WithSpent(recs []ledger.SpentRecord) ClusterOption {
	return func(o *clusterOpts) { o.spent = recs }
}

// NewCluster starts the shards, the router and its HTTP API.
// Everything is torn down when the test ends.
func NewCluster(t *testing.T, opts ...ClusterOption) *Cluster {
	t.Helper()

	o := clusterOpts{shards: 3, timeout: 3 * time.Second, workers: 2}
	for _, opt := range opts {
		opt(&o)
	}

	ids := make([]string, o.shards)
	for i := range ids {
		ids[i] = fmt.Sprintf("shard-%d", i)
	}

	parts := shard.NewPlacement(ids).Partition(o.spent)
	snapDir := t.TempDir()

	c := &Cluster{}
	endpoints := make([]config.ShardEndpoint, len(ids))

	for i, id := range ids {
		s := startShard(t, id, snapDir, parts[id])
		t.Cleanup(s.Stop)

		c.Shards = append(c.Shards, s)
		endpoints[i] = config.ShardEndpoint{ID: id, Address: s.Addr()}
	}

	netNode, err := network.NewNode(network.Config{PrivateKey: generateKey(t)})
	if err != nil {
		t.Fatalf("create router network: %v", err)
	}
	t.Cleanup(func() { netNode.Close() })
	c.network = netNode

	m := metrics.New()

	r, err := router.New(router.NewQUICTransport(netNode), router.Config{
		Shards:       endpoints,
		Timeout:      o.timeout,
		Workers:      o.workers,
		MaxBatchSize: 1000,
	}, m)
	if err != nil {
		t.Fatalf("create router: %v", err)
	}
	c.Router = r

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.Connect(ctx)

	srv := httptest.NewServer(api.New(":0", r, m).Handler())
	t.Cleanup(srv.Close)
	c.Client = client.NewClient(srv.URL)

	return c
}

// startShard writes a snapshot for recs, imports it into fresh storage and
// starts the QUIC listener.
func startShard(t *testing.T, id, snapDir string, recs []ledger.SpentRecord) *ShardNode {
	t.Helper()

	snapPath := filepath.Join(snapDir, id+".kisn")
	if err := snapshot.WriteFile(snapPath, recs); err != nil {
		t.Fatalf("write snapshot %s: %v", id, err)
	}

	s := &ShardNode{id: id, dataDir: t.TempDir()}

	db, err := storage.New(s.dataDir)
	if err != nil {
		t.Fatalf("open storage %s: %v", id, err)
	}
	s.storage = db

	data, err := os.ReadFile(snapPath)
	if err != nil {
		t.Fatalf("read snapshot %s: %v", id, err)
	}

	if s.records, err = snapshot.Import(db, data); err != nil {
		t.Fatalf("import snapshot %s: %v", id, err)
	}

	netNode, err := network.NewNode(network.Config{
		PrivateKey: generateKey(t),
		ListenAddr: "127.0.0.1:0",
	})
	if err != nil {
		t.Fatalf("create shard network %s: %v", id, err)
	}

	netNode.OnRequest(shard.NewHandler(id, db).HandleRequest)

	if err := netNode.Start(); err != nil {
		t.Fatalf("start shard %s: %v", id, err)
	}
	s.network = netNode

	return s
}

// generateKey creates a random ed25519 key.
func generateKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	return priv
}

// spentRecords builds n spent records with distinct key images.
func spentRecords(n int) []ledger.SpentRecord {
	recs := make([]ledger.SpentRecord, n)

	for i := range recs {
		var ki ledger.KeyImage
		rand.Read(ki[:])

		recs[i] = ledger.SpentRecord{KeyImage: ki, SpentAt: uint64(100 + i), Timestamp: uint64(1_700_000_000 + i)}
	}

	return recs
}

// freshKeyImages returns n random key images.
func freshKeyImages(n int) []ledger.KeyImage {
	kis := make([]ledger.KeyImage, n)
	for i := range kis {
		rand.Read(kis[i][:])
	}

	return kis
}

// ownerOf returns the id of the shard that holds ki.
func ownerOf(c *Cluster, ki ledger.KeyImage) string {
	ids := make([]string, len(c.Shards))
	for i, s := range c.Shards {
		ids[i] = s.id
	}

	return shard.NewPlacement(ids).Owner(ki)
}
