// Package snapshot exports and imports a shard's spent key-image set.
//
// A snapshot is a zstd-compressed payload:
//
//	[4B magic "KISN"] [1B version] [8B count] [count x 48B record] [32B blake3]
//
// where each record is [32B key image] [8B spentAt] [8B timestamp], big-endian,
// sorted by key image. The checksum covers everything before it.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/storage"
)

const (
	// snapshotVersion is the current snapshot format version.
	snapshotVersion = 1

	headerSize   = 4 + 1 + 8
	recordSize   = ledger.KeyImageSize + 8 + 8
	checksumSize = 32

	// importBatchSize bounds the number of records per storage batch.
	importBatchSize = 4096
)

var magic = []byte("KISN")

// ErrChecksum is returned when a snapshot's checksum does not match.
var ErrChecksum = errors.New("snapshot checksum mismatch")

// Encode builds a compressed snapshot of recs. recs is not modified.
func Encode(recs []ledger.SpentRecord) ([]byte, error) {
	sorted := make([]ledger.SpentRecord, len(recs))
	copy(sorted, recs)
	sortRecords(sorted)

	raw := make([]byte, headerSize+len(sorted)*recordSize, headerSize+len(sorted)*recordSize+checksumSize)
	copy(raw[0:4], magic)
	raw[4] = snapshotVersion
	binary.BigEndian.PutUint64(raw[5:13], uint64(len(sorted)))

	off := headerSize
	for _, rec := range sorted {
		copy(raw[off:off+ledger.KeyImageSize], rec.KeyImage[:])
		binary.BigEndian.PutUint64(raw[off+32:off+40], rec.SpentAt)
		binary.BigEndian.PutUint64(raw[off+40:off+48], rec.Timestamp)
		off += recordSize
	}

	checksum := blake3.Sum256(raw)
	raw = append(raw, checksum[:]...)

	return compress(raw)
}

// Decode decompresses and verifies a snapshot and returns its records.
func Decode(data []byte) ([]ledger.SpentRecord, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot:\n%w", err)
	}

	if len(raw) < headerSize+checksumSize {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(raw))
	}

	if !bytes.Equal(raw[0:4], magic) {
		return nil, fmt.Errorf("invalid snapshot magic: %q", raw[0:4])
	}

	if raw[4] != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", raw[4])
	}

	count := binary.BigEndian.Uint64(raw[5:13])
	body := raw[:len(raw)-checksumSize]

	avail := uint64(len(body) - headerSize)
	if avail%recordSize != 0 || count != avail/recordSize {
		return nil, fmt.Errorf("snapshot size mismatch: %d records declared, %d bytes of records", count, avail)
	}

	computed := blake3.Sum256(body)
	if !bytes.Equal(computed[:], raw[len(body):]) {
		return nil, ErrChecksum
	}

	recs := make([]ledger.SpentRecord, count)
	off := headerSize

	for i := range recs {
		copy(recs[i].KeyImage[:], body[off:off+ledger.KeyImageSize])
		recs[i].SpentAt = binary.BigEndian.Uint64(body[off+32 : off+40])
		recs[i].Timestamp = binary.BigEndian.Uint64(body[off+40 : off+48])
		off += recordSize
	}

	return recs, nil
}

// Export builds a snapshot of every record in db.
func Export(db *storage.Storage) ([]byte, error) {
	var recs []ledger.SpentRecord

	err := db.Iterate(func(rec ledger.SpentRecord) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect records:\n%w", err)
	}

	return Encode(recs)
}

// Import verifies a snapshot and writes its records to db.
// Returns the number of records written.
func Import(db *storage.Storage, data []byte) (int, error) {
	recs, err := Decode(data)
	if err != nil {
		return 0, err
	}

	for start := 0; start < len(recs); start += importBatchSize {
		end := min(start+importBatchSize, len(recs))

		if err := db.PutBatch(recs[start:end]); err != nil {
			return start, fmt.Errorf("write records:\n%w", err)
		}
	}

	return len(recs), nil
}

// WriteFile encodes recs into a snapshot file at path.
func WriteFile(path string, recs []ledger.SpentRecord) error {
	data, err := Encode(recs)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadFile reads and decodes the snapshot file at path.
func ReadFile(path string) ([]ledger.SpentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s:\n%w", path, err)
	}

	return Decode(data)
}

// sortRecords orders records by key image.
func sortRecords(recs []ledger.SpentRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return bytes.Compare(recs[i].KeyImage[:], recs[j].KeyImage[:]) < 0
	})
}

// compress compresses snapshot data using zstd.
func compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// decompress decompresses zstd-compressed snapshot data.
func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}
