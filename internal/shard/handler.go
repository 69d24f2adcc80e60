package shard

import (
	"fmt"

	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/logger"
	"LedgerRouter/internal/metrics"
	"LedgerRouter/internal/network"
	"LedgerRouter/internal/protocol"
)

// SpentSet looks up spent key images.
type SpentSet interface {
	Lookup(ki ledger.KeyImage) (ledger.SpentRecord, bool, error)
}

// Handler answers key-image query batches from the router.
type Handler struct {
	id      string           // id is this shard's identifier, echoed in responses
	spent   SpentSet         // spent is the shard's partition of the spent set
	metrics *metrics.Metrics // metrics is optional
}

// NewHandler creates a query Handler for the shard with the given id.
func NewHandler(id string, spent SpentSet) *Handler {
	return &Handler{
		id:    id,
		spent: spent,
	}
}

// SetMetrics enables lookup counters.
func (h *Handler) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// HandleRequest decodes a query batch and returns the encoded response.
// Designed to be used as network.Node.OnRequest handler.
func (h *Handler) HandleRequest(peer *network.Peer, data []byte) ([]byte, error) {
	req, err := protocol.DecodeRequest(data)
	if err != nil {
		return nil, fmt.Errorf("decode request:\n%w", err)
	}

	resp := h.Answer(req)

	logger.Debug("answered query batch", "shard", h.id, "queries", len(req.Queries))

	return protocol.EncodeResponse(resp), nil
}

// Answer looks up every query of req and returns one result per query, in
// request order.
func (h *Handler) Answer(req *protocol.QueryRequest) *protocol.QueryResponse {
	resp := &protocol.QueryResponse{
		BatchID: req.BatchID,
		ShardID: h.id,
		Results: make([]ledger.KeyImageResult, len(req.Queries)),
	}

	for i, q := range req.Queries {
		resp.Results[i] = h.lookup(q.KeyImage)
	}

	return resp
}

// lookup builds the shard result for a single key image.
func (h *Handler) lookup(ki ledger.KeyImage) ledger.KeyImageResult {
	rec, found, err := h.spent.Lookup(ki)

	if h.metrics != nil {
		h.metrics.LookupsTotal.Inc()
	}

	if err != nil {
		if h.metrics != nil {
			h.metrics.LookupErrors.Inc()
		}

		logger.Warn("spent set lookup failed", "shard", h.id, "error", err)

		return ledger.KeyImageResult{
			KeyImage:            ki,
			TimestampResultCode: ledger.WatcherDatabaseError,
			KeyImageResultCode:  ledger.KeyImageError,
		}
	}

	if !found {
		return ledger.KeyImageResult{
			KeyImage:            ki,
			TimestampResultCode: ledger.TimestampFound,
			KeyImageResultCode:  ledger.NotSpent,
		}
	}

	return rec.Result()
}
