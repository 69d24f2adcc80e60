package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"LedgerRouter/internal/api"
	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/router"
)

// stubQuerier reports even key images as spent.
type stubQuerier struct {
	err error
}

func (s *stubQuerier) Query(ctx context.Context, keyImages []ledger.KeyImage) (*router.Batch, error) {
	if s.err != nil {
		return nil, s.err
	}

	results := make([]ledger.KeyImageResult, len(keyImages))
	for i, ki := range keyImages {
		results[i] = ledger.DefaultResult(ledger.KeyImageQuery{KeyImage: ki})

		if ki[0]%2 == 0 {
			results[i] = ledger.SpentRecord{KeyImage: ki, SpentAt: 100, Timestamp: 200}.Result()
		}
	}

	return &router.Batch{ID: uuid.Must(uuid.NewV7()), Results: results}, nil
}

func (s *stubQuerier) Status() []router.ShardStatus {
	return []router.ShardStatus{{ID: "a", Address: "a:9000", Connected: true}}
}

func newTestClient(t *testing.T, q api.Querier) *Client {
	t.Helper()

	srv := httptest.NewServer(api.New(":0", q, nil).Handler())
	t.Cleanup(srv.Close)

	return NewClient(srv.URL)
}

// TestCheckKeyImages verifies results round-trip through the HTTP API.
func TestCheckKeyImages(t *testing.T) {
	c := newTestClient(t, &stubQuerier{})

	batch, err := c.CheckKeyImages(context.Background(), []ledger.KeyImage{{1}, {2}})
	if err != nil {
		t.Fatalf("check key images: %v", err)
	}

	if batch.ID.Version() != 7 {
		t.Errorf("expected a v7 batch id, got %v", batch.ID.Version())
	}

	if len(batch.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(batch.Results))
	}

	want := ledger.DefaultResult(ledger.KeyImageQuery{KeyImage: ledger.KeyImage{1}})
	if batch.Results[0] != want {
		t.Errorf("result 0: got %+v, want %+v", batch.Results[0], want)
	}

	want = ledger.SpentRecord{KeyImage: ledger.KeyImage{2}, SpentAt: 100, Timestamp: 200}.Result()
	if batch.Results[1] != want {
		t.Errorf("result 1: got %+v, want %+v", batch.Results[1], want)
	}
}

// TestCheckKeyImages_APIError verifies router errors surface as APIError.
func TestCheckKeyImages_APIError(t *testing.T) {
	c := newTestClient(t, &stubQuerier{err: router.ErrNoShards})

	_, err := c.CheckKeyImages(context.Background(), []ledger.KeyImage{{1}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}

	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", apiErr.StatusCode)
	}

	if apiErr.Message != router.ErrNoShards.Error() {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

// TestCheckKeyImages_Empty verifies an empty batch is rejected by the router.
func TestCheckKeyImages_Empty(t *testing.T) {
	c := newTestClient(t, &stubQuerier{})

	_, err := c.CheckKeyImages(context.Background(), nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
}

// TestStatusAndHealth verifies the monitoring endpoints.
func TestStatusAndHealth(t *testing.T) {
	c := newTestClient(t, &stubQuerier{})

	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	status, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	if status.Shards != 1 || status.Connected != 1 || status.ShardList[0].ID != "a" {
		t.Errorf("unexpected status: %+v", status)
	}
}

// TestToBatch_CountMismatch verifies a short response is rejected.
func TestToBatch_CountMismatch(t *testing.T) {
	resp := &queryResponse{BatchID: uuid.NewString()}

	if _, err := resp.toBatch(1); err == nil {
		t.Error("expected error for missing results")
	}
}

// TestNewClient_AddsScheme verifies bare addresses default to http.
func TestNewClient_AddsScheme(t *testing.T) {
	if c := NewClient("127.0.0.1:8080/"); c.baseURL != "http://127.0.0.1:8080" {
		t.Errorf("unexpected base url %q", c.baseURL)
	}

	if c := NewClient("https://router.example"); c.baseURL != "https://router.example" {
		t.Errorf("unexpected base url %q", c.baseURL)
	}
}
