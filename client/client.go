package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"LedgerRouter/internal/ledger"
)

// defaultTimeout bounds a whole HTTP exchange.
const defaultTimeout = 30 * time.Second

// Client connects to a router via HTTP.
type Client struct {
	baseURL string       // baseURL is the router's HTTP root (e.g. "http://127.0.0.1:8080")
	http    *http.Client // http performs the requests
}

// Batch holds the router's answer to a CheckKeyImages call.
type Batch struct {
	ID      uuid.UUID               // ID is the batch id assigned by the router
	Results []ledger.KeyImageResult // Results holds one entry per key image, in request order
}

// ShardStatus is one shard as reported by /status.
type ShardStatus struct {
	ID        string `json:"id"`        // ID is the shard identifier
	Address   string `json:"address"`   // Address is the shard's QUIC address
	Connected bool   `json:"connected"` // Connected reports an open router connection
}

// Status is the router's /status report.
type Status struct {
	Shards    int           `json:"shards"`     // Shards is the size of the shard set
	Connected int           `json:"connected"`  // Connected counts shards with an open connection
	ShardList []ShardStatus `json:"shard_list"` // ShardList details every shard
}

// NewClient creates a client for the router at addr. A bare host:port is
// treated as http.
func NewClient(addr string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// CheckKeyImages asks the router whether each key image is spent.
func (c *Client) CheckKeyImages(ctx context.Context, keyImages []ledger.KeyImage) (*Batch, error) {
	req := queryRequest{KeyImages: make([]string, len(keyImages))}
	for i, ki := range keyImages {
		req.KeyImages[i] = ki.String()
	}

	var resp queryResponse
	if err := c.postJSON(ctx, "/v1/key-images", req, &resp); err != nil {
		return nil, err
	}

	return resp.toBatch(len(keyImages))
}

// Status fetches the router's shard status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.getJSON(ctx, "/status", &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// Health reports whether the router answers /health.
func (c *Client) Health(ctx context.Context) error {
	var health struct {
		Status string `json:"status"`
	}

	if err := c.getJSON(ctx, "/health", &health); err != nil {
		return err
	}

	if health.Status != "ok" {
		return fmt.Errorf("router unhealthy: %q", health.Status)
	}

	return nil
}

type queryRequest struct {
	KeyImages []string `json:"key_images"`
}

type queryResponse struct {
	BatchID string        `json:"batch_id"`
	Results []resultEntry `json:"results"`
}

type resultEntry struct {
	KeyImage            string `json:"key_image"`
	SpentAt             uint64 `json:"spent_at"`
	Timestamp           uint64 `json:"timestamp"`
	TimestampResultCode string `json:"timestamp_result_code"`
	KeyImageResultCode  string `json:"key_image_result_code"`
}

// toBatch converts the JSON response, checking it holds want results.
func (r *queryResponse) toBatch(want int) (*Batch, error) {
	id, err := uuid.Parse(r.BatchID)
	if err != nil {
		return nil, fmt.Errorf("invalid batch id %q:\n%w", r.BatchID, err)
	}

	if len(r.Results) != want {
		return nil, fmt.Errorf("result count mismatch: got %d, want %d", len(r.Results), want)
	}

	batch := &Batch{ID: id, Results: make([]ledger.KeyImageResult, len(r.Results))}

	for i, e := range r.Results {
		res, err := e.toResult()
		if err != nil {
			return nil, fmt.Errorf("result %d:\n%w", i, err)
		}

		batch.Results[i] = res
	}

	return batch, nil
}

func (e *resultEntry) toResult() (ledger.KeyImageResult, error) {
	ki, err := ledger.ParseKeyImage(e.KeyImage)
	if err != nil {
		return ledger.KeyImageResult{}, err
	}

	kiCode, err := ledger.ParseKeyImageResultCode(e.KeyImageResultCode)
	if err != nil {
		return ledger.KeyImageResult{}, err
	}

	tsCode, err := ledger.ParseTimestampResultCode(e.TimestampResultCode)
	if err != nil {
		return ledger.KeyImageResult{}, err
	}

	return ledger.KeyImageResult{
		KeyImage:            ki,
		SpentAt:             e.SpentAt,
		Timestamp:           e.Timestamp,
		TimestampResultCode: tsCode,
		KeyImageResultCode:  kiCode,
	}, nil
}
