package config

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadRouter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	writeFile(t, path, `
http_address: 127.0.0.1:8081
max_batch_size: 50
collate_workers: 4
shard_timeout: 750ms
shards:
  - id: a
    address: 10.0.0.1:9000
  - id: b
    address: 10.0.0.2:9000
`)

	cfg, err := LoadRouter(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8081", cfg.HTTPAddress)
	assert.Equal(t, 50, cfg.MaxBatchSize)
	assert.Equal(t, 4, cfg.CollateWorkers)
	assert.Equal(t, 750*time.Millisecond, cfg.ShardTimeout)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, []ShardEndpoint{{ID: "a", Address: "10.0.0.1:9000"}, {ID: "b", Address: "10.0.0.2:9000"}}, cfg.Shards)
}

func TestLoadRouter_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	writeFile(t, path, "")

	cfg, err := LoadRouter(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddress, cfg.HTTPAddress)
	assert.Equal(t, DefaultMaxBatchSize, cfg.MaxBatchSize)
	assert.Equal(t, DefaultShardTimeout, cfg.ShardTimeout)
	assert.Empty(t, cfg.Shards)
}

func TestLoadRouter_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "quic_address: :9000\n"},
		{"shard without id", "shards:\n  - address: a:1\n"},
		{"shard without address", "shards:\n  - id: a\n"},
		{"duplicate id", "shards:\n  - {id: a, address: a:1}\n  - {id: a, address: b:1}\n"},
		{"duplicate address", "shards:\n  - {id: a, address: a:1}\n  - {id: b, address: a:1}\n"},
		{"negative workers", "collate_workers: -1\n"},
		{"batch above protocol limit", "max_batch_size: 65537\n"},
		{"bad log level", "log_level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "router.yaml")
			writeFile(t, path, tt.content)

			_, err := LoadRouter(path)
			require.Error(t, err)
		})
	}
}

func TestLoadRouter_ValidationErrorsWrapErrInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	writeFile(t, path, "shards:\n  - id: a\n")

	_, err := LoadRouter(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadRouter_MissingFile(t *testing.T) {
	_, err := LoadRouter(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadShard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard.yaml")
	writeFile(t, path, "id: shard-3\nsnapshot: /tmp/s.kisn\nlog_level: debug\n")

	cfg, err := LoadShard(path)
	require.NoError(t, err)

	assert.Equal(t, "shard-3", cfg.ID)
	assert.Equal(t, DefaultQUICAddress, cfg.QUICAddress)
	assert.Equal(t, DefaultDataPath, cfg.DataPath)
	assert.Equal(t, "/tmp/s.kisn", cfg.Snapshot)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadShard_RequiresID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard.yaml")
	writeFile(t, path, "data_path: /tmp/x\n")

	_, err := LoadShard(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadOrGenerateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")

	first, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	require.Len(t, first, ed25519.PrivateKeySize)

	second, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadOrGenerateKey_Ephemeral(t *testing.T) {
	a, err := LoadOrGenerateKey("")
	require.NoError(t, err)

	b, err := LoadOrGenerateKey("")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestLoadOrGenerateKey_BadSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")
	writeFile(t, path, "short")

	_, err := LoadOrGenerateKey(path)
	require.Error(t, err)
}

func TestWatchRouter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	writeFile(t, path, "shards:\n  - {id: a, address: a:1}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *RouterConfig, 4)
	done := make(chan error, 1)

	go func() {
		done <- WatchRouter(ctx, path, func(cfg *RouterConfig) { changes <- cfg })
	}()

	// Give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	// An invalid version is skipped
	writeFile(t, path, "shards:\n  - {id: a}\n")
	time.Sleep(2 * reloadDebounce)

	writeFile(t, path, "shards:\n  - {id: a, address: a:1}\n  - {id: b, address: b:1}\n")

	select {
	case cfg := <-changes:
		require.Len(t, cfg.Shards, 2)
		assert.Equal(t, "b", cfg.Shards[1].ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for reload")
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
