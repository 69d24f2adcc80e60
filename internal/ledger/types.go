package ledger

import (
	"encoding/hex"
	"fmt"
	"math"
)

// KeyImageSize is the width of a key image in bytes.
const KeyImageSize = 32

const (
	// DefaultSpentAt marks a client result whose key image was not located.
	// Zero means "unset" on the wire, so the sentinel is one.
	DefaultSpentAt uint64 = 1

	// DefaultTimestamp is the "unknown" timestamp sentinel.
	DefaultTimestamp uint64 = math.MaxUint64
)

// KeyImage is the tag derived from a spent output.
type KeyImage [KeyImageSize]byte

// KeyImageFromBytes copies b into a KeyImage.
func KeyImageFromBytes(b []byte) (KeyImage, error) {
	var ki KeyImage

	if len(b) != KeyImageSize {
		return ki, fmt.Errorf("invalid key image size: got %d, want %d", len(b), KeyImageSize)
	}

	copy(ki[:], b)

	return ki, nil
}

// ParseKeyImage decodes a hex-encoded key image.
func ParseKeyImage(s string) (KeyImage, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return KeyImage{}, fmt.Errorf("decode key image hex:\n%w", err)
	}

	return KeyImageFromBytes(b)
}

// String returns the hex encoding of the key image.
func (k KeyImage) String() string {
	return hex.EncodeToString(k[:])
}

// KeyImageQuery is a client-submitted lookup.
type KeyImageQuery struct {
	KeyImage KeyImage // KeyImage is the key image to look up
}

// KeyImageResult is the answer for one key image, either from a shard or
// the collated answer returned to the client.
type KeyImageResult struct {
	KeyImage            KeyImage            // KeyImage echoes the queried key image
	SpentAt             uint64              // SpentAt is the block index of the spend
	Timestamp           uint64              // Timestamp is the block timestamp of the spend
	TimestampResultCode TimestampResultCode // TimestampResultCode qualifies Timestamp
	KeyImageResultCode  KeyImageResultCode  // KeyImageResultCode is the spend status
}

// DefaultResult returns the result a client query starts with before any
// shard result has been merged into it.
func DefaultResult(q KeyImageQuery) KeyImageResult {
	return KeyImageResult{
		KeyImage:            q.KeyImage,
		SpentAt:             DefaultSpentAt,
		Timestamp:           DefaultTimestamp,
		TimestampResultCode: TimestampFound,
		KeyImageResultCode:  NotSpent,
	}
}

// SpentRecord is what a shard persists for a spent key image.
type SpentRecord struct {
	KeyImage  KeyImage // KeyImage is the spent key image
	SpentAt   uint64   // SpentAt is the block index containing the spend
	Timestamp uint64   // Timestamp is the block timestamp
}

// Result converts the record into the shard answer for its key image.
func (r SpentRecord) Result() KeyImageResult {
	return KeyImageResult{
		KeyImage:            r.KeyImage,
		SpentAt:             r.SpentAt,
		Timestamp:           r.Timestamp,
		TimestampResultCode: TimestampFound,
		KeyImageResultCode:  Spent,
	}
}
