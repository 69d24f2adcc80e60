package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/router"
)

// queryRequestJSON is the body of POST /v1/key-images.
type queryRequestJSON struct {
	KeyImages []string `json:"key_images"` // KeyImages are hex-encoded 32-byte key images
}

// resultJSON is one entry of a query response.
type resultJSON struct {
	KeyImage            string `json:"key_image"`
	SpentAt             uint64 `json:"spent_at"`
	Timestamp           uint64 `json:"timestamp"`
	TimestampResultCode string `json:"timestamp_result_code"`
	KeyImageResultCode  string `json:"key_image_result_code"`
}

// queryResponseJSON is the body returned by POST /v1/key-images.
type queryResponseJSON struct {
	BatchID string       `json:"batch_id"`
	Results []resultJSON `json:"results"`
}

type shardStatusJSON struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
}

type statusJSON struct {
	Shards    int               `json:"shards"`
	Connected int               `json:"connected"`
	ShardList []shardStatusJSON `json:"shard_list"`
}

// parseQueryRequest decodes and validates a query body. Every key image must
// be 64 hex characters; widths are checked here so that nothing downstream
// handles a key image of the wrong size.
func parseQueryRequest(body []byte) ([]ledger.KeyImage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var req queryRequestJSON
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid json: %v", err)
	}

	if len(req.KeyImages) == 0 {
		return nil, router.ErrEmptyBatch
	}

	keyImages := make([]ledger.KeyImage, len(req.KeyImages))

	for i, s := range req.KeyImages {
		ki, err := ledger.ParseKeyImage(s)
		if err != nil {
			return nil, fmt.Errorf("key image %d: invalid hex or size", i)
		}

		keyImages[i] = ki
	}

	return keyImages, nil
}

// newQueryResponse renders a batch.
func newQueryResponse(batch *router.Batch) queryResponseJSON {
	results := make([]resultJSON, len(batch.Results))

	for i, r := range batch.Results {
		results[i] = resultJSON{
			KeyImage:            r.KeyImage.String(),
			SpentAt:             r.SpentAt,
			Timestamp:           r.Timestamp,
			TimestampResultCode: r.TimestampResultCode.String(),
			KeyImageResultCode:  r.KeyImageResultCode.String(),
		}
	}

	return queryResponseJSON{
		BatchID: batch.ID.String(),
		Results: results,
	}
}
