package shard

import (
	"bytes"
	"sort"

	"github.com/zeebo/blake3"

	"LedgerRouter/internal/ledger"
)

// Placement maps key images to the shards that store them using
// rendezvous hashing. Adding or removing a shard only moves the key images
// that shard owned.
type Placement struct {
	shards []string // shards are the shard ids
}

// scoredShard pairs a shard with its computed score.
type scoredShard struct {
	id    string   // id is the shard id
	score [32]byte // score is the computed rendezvous score
}

// NewPlacement creates a Placement over the given shard ids.
func NewPlacement(shards []string) *Placement {
	ids := make([]string, len(shards))
	copy(ids, shards)

	return &Placement{shards: ids}
}

// Owner returns the shard responsible for ki, or "" if there are no shards.
func (p *Placement) Owner(ki ledger.KeyImage) string {
	ranked := p.Rank(ki, 1)
	if len(ranked) == 0 {
		return ""
	}

	return ranked[0]
}

// Rank returns the top n shards for ki ordered by score (highest first).
func (p *Placement) Rank(ki ledger.KeyImage, n int) []string {
	if n <= 0 || len(p.shards) == 0 {
		return nil
	}

	if n > len(p.shards) {
		n = len(p.shards)
	}

	scored := make([]scoredShard, len(p.shards))

	for i, id := range p.shards {
		scored[i] = scoredShard{
			id:    id,
			score: computeScore(ki, id),
		}
	}

	// Ties are impossible in practice; fall back to id order for determinism.
	sort.Slice(scored, func(i, j int) bool {
		c := bytes.Compare(scored[i].score[:], scored[j].score[:])
		if c != 0 {
			return c > 0
		}
		return scored[i].id < scored[j].id
	})

	result := make([]string, n)
	for i := 0; i < n; i++ {
		result[i] = scored[i].id
	}

	return result
}

// Partition splits records by owning shard.
func (p *Placement) Partition(recs []ledger.SpentRecord) map[string][]ledger.SpentRecord {
	parts := make(map[string][]ledger.SpentRecord, len(p.shards))

	for _, rec := range recs {
		owner := p.Owner(rec.KeyImage)
		parts[owner] = append(parts[owner], rec)
	}

	return parts
}

// computeScore calculates the rendezvous score for a key image and shard.
// Score = BLAKE3(keyImage || shardID)
func computeScore(ki ledger.KeyImage, shardID string) [32]byte {
	h := blake3.New()
	h.Write(ki[:])
	h.Write([]byte(shardID))

	var result [32]byte
	h.Sum(result[:0])

	return result
}
