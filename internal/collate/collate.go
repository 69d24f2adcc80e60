// Package collate merges per-shard key-image results into one result per
// client query without data-dependent branches or memory accesses.
//
// The work is |queries| x |shardResults| regardless of which pairs match:
// every shard result is considered for every query, so neither the running
// time nor the access pattern reveals which key images were found.
package collate

import (
	"sync"

	"LedgerRouter/internal/ledger"
)

// Collate returns one result per query, in query order. Each result starts
// at ledger.DefaultResult and is updated by every shard result in iteration
// order under ShouldOverwrite.
func Collate(queries []ledger.KeyImageQuery, shardResults []ledger.KeyImageResult) []ledger.KeyImageResult {
	out := defaults(queries)
	merge(out, shardResults)

	return out
}

// CollateParallel is Collate with the query dimension split across up to
// workers goroutines. Each goroutine owns a contiguous slice of the output
// and still scans every shard result for each of its queries, so the output
// and the per-query work are identical to Collate.
func CollateParallel(queries []ledger.KeyImageQuery, shardResults []ledger.KeyImageResult, workers int) []ledger.KeyImageResult {
	if workers <= 1 || len(queries) <= 1 {
		return Collate(queries, shardResults)
	}

	if workers > len(queries) {
		workers = len(queries)
	}

	out := defaults(queries)
	chunk := (len(out) + workers - 1) / workers

	var wg sync.WaitGroup

	for start := 0; start < len(out); start += chunk {
		end := min(start+chunk, len(out))

		wg.Add(1)

		go func(part []ledger.KeyImageResult) {
			defer wg.Done()
			merge(part, shardResults)
		}(out[start:end])
	}

	wg.Wait()

	return out
}

// defaults builds the starting result for every query.
func defaults(queries []ledger.KeyImageQuery) []ledger.KeyImageResult {
	out := make([]ledger.KeyImageResult, len(queries))

	for i := range queries {
		out[i] = ledger.DefaultResult(queries[i])
	}

	return out
}

// merge applies every shard result to every client result. The shard loop is
// outermost so later shard results are applied after earlier ones for all
// queries, which fixes last-Spent-wins to input order.
func merge(clients []ledger.KeyImageResult, shardResults []ledger.KeyImageResult) {
	for s := range shardResults {
		shard := &shardResults[s]

		for c := range clients {
			maybeOverwrite(&clients[c], shard)
		}
	}
}
