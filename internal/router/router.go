// Package router fans a batch of key-image queries out to every shard and
// collates the shard answers into one result per query.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"LedgerRouter/internal/collate"
	"LedgerRouter/internal/config"
	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/logger"
	"LedgerRouter/internal/metrics"
	"LedgerRouter/internal/oblivious"
	"LedgerRouter/internal/protocol"
)

var (
	// ErrEmptyBatch is returned for a batch without key images.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrBatchTooLarge is returned for a batch above the configured maximum.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrNoShards is returned when the shard set is empty. Answering from an
	// empty shard set would report every key image as unspent.
	ErrNoShards = errors.New("no shards configured")
)

// Transport carries encoded requests to shards.
type Transport interface {
	Dial(ctx context.Context, addr string) error
	Request(ctx context.Context, addr string, data []byte) ([]byte, error)
	Connected(addr string) bool
	Forget(addr string)
}

// Config holds the router settings.
type Config struct {
	Shards       []config.ShardEndpoint // Shards is the initial shard set
	Timeout      time.Duration          // Timeout bounds the shard fan-out of one batch
	Workers      int                    // Workers is the collation parallelism; 0 means GOMAXPROCS
	MaxBatchSize int                    // MaxBatchSize bounds the key images per batch; 0 means protocol.MaxQueries
}

// Batch is the collated answer to one query batch.
type Batch struct {
	ID      uuid.UUID               // ID is the batch id sent to every shard
	Results []ledger.KeyImageResult // Results holds one entry per key image, in request order
	Failed  int                     // Failed counts shards that did not answer
}

// ShardStatus reports one shard of the current set.
type ShardStatus struct {
	ID        string // ID is the shard identifier
	Address   string // Address is the shard's QUIC address
	Connected bool   // Connected reports an open connection
}

// Router answers query batches from the current shard set.
type Router struct {
	transport Transport        // transport reaches the shards
	metrics   *metrics.Metrics // metrics records batch and shard outcomes

	timeout  time.Duration // timeout bounds the fan-out of one batch
	workers  int           // workers is the collation parallelism
	maxBatch int           // maxBatch bounds the key images per batch

	shards   []config.ShardEndpoint // shards is the current shard set, never mutated in place
	shardsMu sync.RWMutex           // shardsMu protects shards
}

// New creates a Router. The initial shard set must be valid.
func New(t Transport, cfg Config, m *metrics.Metrics) (*Router, error) {
	if err := config.ValidateShards(cfg.Shards); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultShardTimeout
	}

	// Shards reject larger requests.
	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 || maxBatch > protocol.MaxQueries {
		maxBatch = protocol.MaxQueries
	}

	r := &Router{
		transport: t,
		metrics:   m,
		timeout:   timeout,
		workers:   workers,
		maxBatch:  maxBatch,
		shards:    append([]config.ShardEndpoint(nil), cfg.Shards...),
	}

	m.ShardsConfigured.Set(float64(len(r.shards)))

	return r, nil
}

// Shards returns the current shard set.
func (r *Router) Shards() []config.ShardEndpoint {
	r.shardsMu.RLock()
	defer r.shardsMu.RUnlock()

	return r.shards
}

// Status reports the connection state of every shard.
func (r *Router) Status() []ShardStatus {
	shards := r.Shards()

	status := make([]ShardStatus, len(shards))
	for i, s := range shards {
		status[i] = ShardStatus{
			ID:        s.ID,
			Address:   s.Address,
			Connected: r.transport.Connected(s.Address),
		}
	}

	return status
}

// SetShards replaces the shard set. Connections to shards that left the set
// are closed; batches already in flight finish with the previous set.
func (r *Router) SetShards(shards []config.ShardEndpoint) error {
	if err := config.ValidateShards(shards); err != nil {
		return err
	}

	next := append([]config.ShardEndpoint(nil), shards...)

	r.shardsMu.Lock()
	prev := r.shards
	r.shards = next
	r.shardsMu.Unlock()

	kept := make(map[string]bool, len(next))
	for _, s := range next {
		kept[s.Address] = true
	}

	for _, s := range prev {
		if !kept[s.Address] {
			r.transport.Forget(s.Address)
		}
	}

	r.metrics.ShardsConfigured.Set(float64(len(next)))
	r.metrics.ShardSetReloads.Inc()

	logger.Info("shard set replaced", "previous", len(prev), "current", len(next))

	return nil
}

// Connect dials every shard of the current set. Failures are logged; a
// shard that is down is dialed again on the next batch.
func (r *Router) Connect(ctx context.Context) {
	var wg sync.WaitGroup

	for _, s := range r.Shards() {
		wg.Add(1)

		go func(s config.ShardEndpoint) {
			defer wg.Done()

			if err := r.transport.Dial(ctx, s.Address); err != nil {
				logger.Warn("shard unreachable", "shard", s.ID, "addr", s.Address, "error", err)
			}
		}(s)
	}

	wg.Wait()
}

// Query answers a batch of key images. Shards that fail or time out count
// as reporting an error for every key image; a spend proven by another
// shard still wins over that error.
func (r *Router) Query(ctx context.Context, keyImages []ledger.KeyImage) (*Batch, error) {
	if len(keyImages) == 0 {
		return nil, ErrEmptyBatch
	}

	if len(keyImages) > r.maxBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(keyImages), r.maxBatch)
	}

	shards := r.Shards()
	if len(shards) == 0 {
		return nil, ErrNoShards
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate batch id:\n%w", err)
	}

	start := time.Now()

	queries := make([]ledger.KeyImageQuery, len(keyImages))
	for i, ki := range keyImages {
		queries[i] = ledger.KeyImageQuery{KeyImage: ki}
	}

	responses, failed := r.fanOut(ctx, id, shards, queries)

	shardResults := make([]ledger.KeyImageResult, 0, len(shards)*len(queries))
	for _, results := range responses {
		shardResults = append(shardResults, results...)
	}

	collateStart := time.Now()
	results := collate.CollateParallel(queries, shardResults, r.workers)
	r.metrics.CollateDuration.Observe(time.Since(collateStart).Seconds())

	outcome := "ok"
	if failed > 0 {
		outcome = "degraded"
	}

	r.metrics.BatchesTotal.WithLabelValues(outcome).Inc()
	r.metrics.QueriesTotal.Add(float64(len(queries)))
	r.metrics.BatchDuration.Observe(time.Since(start).Seconds())

	logger.Debug("batch answered",
		"batch", id.String(),
		"queries", len(queries),
		"shards", len(shards),
		"failed", failed,
		logger.Timed(start),
	)

	return &Batch{ID: id, Results: results, Failed: failed}, nil
}

// fanOut sends the batch to every shard concurrently and returns each
// shard's results in shard-set order, with the number of failed shards.
func (r *Router) fanOut(
	ctx context.Context,
	id uuid.UUID,
	shards []config.ShardEndpoint,
	queries []ledger.KeyImageQuery,
) ([][]ledger.KeyImageResult, int) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := protocol.EncodeRequest(&protocol.QueryRequest{
		BatchID: id,
		Queries: queries,
	})

	responses := make([][]ledger.KeyImageResult, len(shards))
	errs := make([]error, len(shards))

	var wg sync.WaitGroup

	for i, s := range shards {
		wg.Add(1)

		go func(i int, s config.ShardEndpoint) {
			defer wg.Done()

			responses[i], errs[i] = r.queryShard(ctx, s, id, queries, req)
		}(i, s)
	}

	wg.Wait()

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}

		failed++
		responses[i] = unavailableResults(queries)

		logger.Warn("shard failed",
			"batch", id.String(),
			"shard", shards[i].ID,
			"error", err,
		)
	}

	return responses, failed
}

// queryShard sends the encoded request to one shard and checks the answer.
func (r *Router) queryShard(
	ctx context.Context,
	s config.ShardEndpoint,
	id uuid.UUID,
	queries []ledger.KeyImageQuery,
	req []byte,
) ([]ledger.KeyImageResult, error) {
	start := time.Now()
	defer func() {
		r.metrics.ShardDuration.WithLabelValues(s.ID).Observe(time.Since(start).Seconds())
	}()

	results, err := r.exchange(ctx, s, id, queries, req)
	if err != nil {
		r.metrics.ShardRequests.WithLabelValues(s.ID, "error").Inc()
		return nil, err
	}

	r.metrics.ShardRequests.WithLabelValues(s.ID, "ok").Inc()

	return results, nil
}

func (r *Router) exchange(
	ctx context.Context,
	s config.ShardEndpoint,
	id uuid.UUID,
	queries []ledger.KeyImageQuery,
	req []byte,
) ([]ledger.KeyImageResult, error) {
	data, err := r.transport.Request(ctx, s.Address, req)
	if err != nil {
		return nil, fmt.Errorf("request:\n%w", err)
	}

	resp, err := protocol.DecodeResponse(data)
	if err != nil {
		return nil, fmt.Errorf("decode response:\n%w", err)
	}

	if resp.BatchID != id {
		return nil, fmt.Errorf("batch id mismatch")
	}

	if len(resp.Results) != len(queries) {
		return nil, fmt.Errorf("result count mismatch: got %d, want %d", len(resp.Results), len(queries))
	}

	if !answersInOrder(queries, resp.Results).Unwrap() {
		return nil, fmt.Errorf("results do not match queries")
	}

	return resp.Results, nil
}

// answersInOrder reports whether results[i] answers queries[i] for every i.
// Every pair is compared so the time taken does not depend on where a
// mismatch is.
func answersInOrder(queries []ledger.KeyImageQuery, results []ledger.KeyImageResult) oblivious.Choice {
	ok := oblivious.True

	for i := range queries {
		ok = ok.And(oblivious.EqBytes(queries[i].KeyImage[:], results[i].KeyImage[:]))
	}

	return ok
}

// unavailableResults stands in for a shard that did not answer.
func unavailableResults(queries []ledger.KeyImageQuery) []ledger.KeyImageResult {
	results := make([]ledger.KeyImageResult, len(queries))

	for i, q := range queries {
		results[i] = ledger.KeyImageResult{
			KeyImage:            q.KeyImage,
			TimestampResultCode: ledger.Unavailable,
			KeyImageResultCode:  ledger.KeyImageError,
		}
	}

	return results
}
