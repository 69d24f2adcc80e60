package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"LedgerRouter/internal/ledger"
)

const (
	// defaultSyncInterval is the default interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond

	// recordValueSize is the encoded size of a spent record value.
	recordValueSize = 16
)

// prefixKeyImage namespaces spent key-image records.
var prefixKeyImage = []byte("ki:")

// ErrCorruptRecord is returned when a stored value cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt spent record")

// Storage holds the spent key images of one shard, backed by Pebble.
// Writes are non-blocking (NoSync) and a background goroutine
// periodically syncs the WAL to disk for durability.
type Storage struct {
	db       *pebble.DB    // db is the underlying Pebble database
	stopSync chan struct{} // stopSync signals the sync goroutine to stop
	wg       sync.WaitGroup
}

// New opens (or creates) a Storage at the given path.
// It starts a background goroutine that syncs the WAL periodically.
func New(path string) (*Storage, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(32 << 20), // 32 MB cache
		MemTableSize:                16 << 20,                  // 16 MB memtable
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s:\n%w", path, err)
	}

	s := &Storage{
		db:       db,
		stopSync: make(chan struct{}),
	}

	s.startSyncLoop()

	return s, nil
}

// Lookup returns the spent record for ki.
// found is false when the key image has not been spent.
func (s *Storage) Lookup(ki ledger.KeyImage) (rec ledger.SpentRecord, found bool, err error) {
	value, closer, err := s.db.Get(recordKey(ki))
	if errors.Is(err, pebble.ErrNotFound) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	defer closer.Close()

	// value is only valid until closer.Close(); decode copies out of it
	rec, err = decodeRecord(ki, value)
	if err != nil {
		return rec, false, err
	}

	return rec, true, nil
}

// Put stores a spent record.
// The write is buffered and synced periodically by the background goroutine.
func (s *Storage) Put(rec ledger.SpentRecord) error {
	return s.db.Set(recordKey(rec.KeyImage), encodeRecord(rec), pebble.NoSync)
}

// PutBatch atomically stores multiple spent records.
// Either all records are written or none.
func (s *Storage) PutBatch(recs []ledger.SpentRecord) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, rec := range recs {
		if err := batch.Set(recordKey(rec.KeyImage), encodeRecord(rec), nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.NoSync)
}

// Iterate calls fn for every spent record in key-image order.
// If fn returns an error, iteration stops and the error is returned.
func (s *Storage) Iterate(fn func(rec ledger.SpentRecord) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefixKeyImage,
		UpperBound: prefixUpperBound(prefixKeyImage),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		ki, err := ledger.KeyImageFromBytes(iter.Key()[len(prefixKeyImage):])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}

		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		rec, err := decodeRecord(ki, value)
		if err != nil {
			return err
		}

		if err := fn(rec); err != nil {
			return err
		}
	}

	return iter.Error()
}

// Count returns the number of spent records.
func (s *Storage) Count() (int, error) {
	n := 0

	err := s.Iterate(func(ledger.SpentRecord) error {
		n++
		return nil
	})

	return n, err
}

// recordKey returns the storage key for a key image.
func recordKey(ki ledger.KeyImage) []byte {
	key := make([]byte, len(prefixKeyImage)+ledger.KeyImageSize)
	copy(key, prefixKeyImage)
	copy(key[len(prefixKeyImage):], ki[:])

	return key
}

// encodeRecord encodes a record value.
// Format: [8B spentAt] [8B timestamp], big-endian
func encodeRecord(rec ledger.SpentRecord) []byte {
	buf := make([]byte, recordValueSize)
	binary.BigEndian.PutUint64(buf[0:8], rec.SpentAt)
	binary.BigEndian.PutUint64(buf[8:16], rec.Timestamp)

	return buf
}

// decodeRecord decodes a record value for ki.
func decodeRecord(ki ledger.KeyImage, value []byte) (ledger.SpentRecord, error) {
	if len(value) != recordValueSize {
		return ledger.SpentRecord{}, fmt.Errorf("%w: value size %d", ErrCorruptRecord, len(value))
	}

	return ledger.SpentRecord{
		KeyImage:  ki,
		SpentAt:   binary.BigEndian.Uint64(value[0:8]),
		Timestamp: binary.BigEndian.Uint64(value[8:16]),
	}, nil
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper
		}
	}

	return nil
}

// Close stops the sync goroutine and closes the database.
// It performs a final sync before closing to ensure durability.
func (s *Storage) Close() error {
	close(s.stopSync)
	s.wg.Wait()

	if err := s.sync(); err != nil {
		return err
	}

	return s.db.Close()
}

// startSyncLoop starts the background goroutine that periodically syncs the WAL.
func (s *Storage) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(defaultSyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync to disk.
func (s *Storage) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
