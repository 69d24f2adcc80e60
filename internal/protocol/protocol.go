// Package protocol encodes the messages exchanged between the router and
// the shards. Each message is a type byte followed by a flatbuffer.
package protocol

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/types"
)

// Message types.
const (
	MsgTypeQueryRequest  = 0x01 // Key-image query batch sent to a shard
	MsgTypeQueryResponse = 0x02 // Per-query results returned by a shard
)

// BatchIDSize is the size of a batch identifier (a UUID).
const BatchIDSize = 16

// MaxQueries bounds the queries of a request and the results of a response.
const MaxQueries = 1 << 16

// ErrMalformed is returned for messages whose flatbuffer cannot be read.
var ErrMalformed = errors.New("malformed message")

// QueryRequest asks a shard to look up a batch of key images.
type QueryRequest struct {
	BatchID [BatchIDSize]byte      // BatchID correlates the request with its response
	Queries []ledger.KeyImageQuery // Queries are the key images to look up, in client order
}

// QueryResponse carries one shard's results for a QueryRequest.
type QueryResponse struct {
	BatchID [BatchIDSize]byte       // BatchID echoes the request's batch id
	ShardID string                  // ShardID names the answering shard
	Results []ledger.KeyImageResult // Results holds one entry per query, in request order
}

// EncodeRequest encodes a query request.
// Format: [1B type] [QueryRequest flatbuffer]
func EncodeRequest(req *QueryRequest) []byte {
	builder := flatbuffers.NewBuilder(64 + len(req.Queries)*(ledger.KeyImageSize+16))

	queryOffsets := make([]flatbuffers.UOffsetT, len(req.Queries))
	for i := range req.Queries {
		kiVec := builder.CreateByteVector(req.Queries[i].KeyImage[:])

		types.KeyImageQueryStart(builder)
		types.KeyImageQueryAddKeyImage(builder, kiVec)
		queryOffsets[i] = types.KeyImageQueryEnd(builder)
	}

	queriesVec := prependOffsets(builder, queryOffsets, types.QueryRequestStartQueriesVector)
	batchVec := builder.CreateByteVector(req.BatchID[:])

	types.QueryRequestStart(builder)
	types.QueryRequestAddBatchId(builder, batchVec)
	types.QueryRequestAddQueries(builder, queriesVec)
	root := types.QueryRequestEnd(builder)

	builder.Finish(root)

	return frame(MsgTypeQueryRequest, builder.FinishedBytes())
}

// DecodeRequest decodes a query request.
func DecodeRequest(data []byte) (req *QueryRequest, err error) {
	body, err := unframe(data, MsgTypeQueryRequest)
	if err != nil {
		return nil, err
	}

	defer recoverMalformed(&req, &err)

	fb := types.GetRootAsQueryRequest(body, 0)

	req = &QueryRequest{}
	if err := copyBatchID(&req.BatchID, fb.BatchIdBytes()); err != nil {
		return nil, err
	}

	n := fb.QueriesLength()
	if err := checkVectorLength(n, body); err != nil {
		return nil, fmt.Errorf("queries: %w", err)
	}

	req.Queries = make([]ledger.KeyImageQuery, n)

	var q types.KeyImageQuery
	for i := 0; i < n; i++ {
		if !fb.Queries(&q, i) {
			return nil, fmt.Errorf("query %d: %w", i, ErrMalformed)
		}

		ki, err := ledger.KeyImageFromBytes(q.KeyImageBytes())
		if err != nil {
			return nil, fmt.Errorf("query %d:\n%w", i, err)
		}

		req.Queries[i].KeyImage = ki
	}

	return req, nil
}

// EncodeResponse encodes a query response.
// Format: [1B type] [QueryResponse flatbuffer]
func EncodeResponse(resp *QueryResponse) []byte {
	builder := flatbuffers.NewBuilder(64 + len(resp.Results)*(ledger.KeyImageSize+48))

	resultOffsets := make([]flatbuffers.UOffsetT, len(resp.Results))
	for i := range resp.Results {
		r := &resp.Results[i]
		kiVec := builder.CreateByteVector(r.KeyImage[:])

		types.KeyImageResultStart(builder)
		types.KeyImageResultAddKeyImage(builder, kiVec)
		types.KeyImageResultAddSpentAt(builder, r.SpentAt)
		types.KeyImageResultAddTimestamp(builder, r.Timestamp)
		types.KeyImageResultAddTimestampResultCode(builder, r.TimestampResultCode.Wire())
		types.KeyImageResultAddKeyImageResultCode(builder, r.KeyImageResultCode.Wire())
		resultOffsets[i] = types.KeyImageResultEnd(builder)
	}

	resultsVec := prependOffsets(builder, resultOffsets, types.QueryResponseStartResultsVector)
	shardID := builder.CreateString(resp.ShardID)
	batchVec := builder.CreateByteVector(resp.BatchID[:])

	types.QueryResponseStart(builder)
	types.QueryResponseAddBatchId(builder, batchVec)
	types.QueryResponseAddShardId(builder, shardID)
	types.QueryResponseAddResults(builder, resultsVec)
	root := types.QueryResponseEnd(builder)

	builder.Finish(root)

	return frame(MsgTypeQueryResponse, builder.FinishedBytes())
}

// DecodeResponse decodes a query response. Result codes are mapped through
// the oblivious wire decoders, so unknown codes become KeyImageError.
func DecodeResponse(data []byte) (resp *QueryResponse, err error) {
	body, err := unframe(data, MsgTypeQueryResponse)
	if err != nil {
		return nil, err
	}

	defer recoverMalformed(&resp, &err)

	fb := types.GetRootAsQueryResponse(body, 0)

	resp = &QueryResponse{ShardID: string(fb.ShardId())}
	if err := copyBatchID(&resp.BatchID, fb.BatchIdBytes()); err != nil {
		return nil, err
	}

	n := fb.ResultsLength()
	if err := checkVectorLength(n, body); err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}

	resp.Results = make([]ledger.KeyImageResult, n)

	var r types.KeyImageResult
	for i := 0; i < n; i++ {
		if !fb.Results(&r, i) {
			return nil, fmt.Errorf("result %d: %w", i, ErrMalformed)
		}

		ki, err := ledger.KeyImageFromBytes(r.KeyImageBytes())
		if err != nil {
			return nil, fmt.Errorf("result %d:\n%w", i, err)
		}

		resp.Results[i] = ledger.KeyImageResult{
			KeyImage:            ki,
			SpentAt:             r.SpentAt(),
			Timestamp:           r.Timestamp(),
			TimestampResultCode: ledger.TimestampResultCodeFromWire(r.TimestampResultCode()),
			KeyImageResultCode:  ledger.KeyImageResultCodeFromWire(r.KeyImageResultCode()),
		}
	}

	return resp, nil
}

// GetMessageType returns the type byte of an encoded message.
func GetMessageType(data []byte) (byte, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty message")
	}

	return data[0], nil
}

// prependOffsets writes a vector of table offsets. Flatbuffers builds
// back to front, so offsets are prepended in reverse.
func prependOffsets(
	builder *flatbuffers.Builder,
	offsets []flatbuffers.UOffsetT,
	start func(*flatbuffers.Builder, int) flatbuffers.UOffsetT,
) flatbuffers.UOffsetT {
	start(builder, len(offsets))

	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}

	return builder.EndVector(len(offsets))
}

// frame prepends the message type to a finished flatbuffer.
func frame(msgType byte, body []byte) []byte {
	buf := make([]byte, 1+len(body))
	buf[0] = msgType
	copy(buf[1:], body)

	return buf
}

// unframe checks the type byte and returns the flatbuffer body.
func unframe(data []byte, want byte) ([]byte, error) {
	msgType, err := GetMessageType(data)
	if err != nil {
		return nil, err
	}

	if msgType != want {
		return nil, fmt.Errorf("invalid message type: 0x%02x", msgType)
	}

	// Smallest valid flatbuffer: root offset + vtable offset.
	if len(data) < 1+2*flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("message too short: %d bytes", len(data))
	}

	return data[1:], nil
}

// copyBatchID validates and copies a batch id.
func copyBatchID(dst *[BatchIDSize]byte, src []byte) error {
	if len(src) != BatchIDSize {
		return fmt.Errorf("invalid batch id size: got %d, want %d", len(src), BatchIDSize)
	}

	copy(dst[:], src)

	return nil
}

// checkVectorLength rejects a table vector length read from the wire before
// anything is allocated for it. Every element takes at least one offset in
// body.
func checkVectorLength(n int, body []byte) error {
	if n < 0 || n > MaxQueries || n > len(body)/flatbuffers.SizeUOffsetT {
		return fmt.Errorf("%w: vector length %d", ErrMalformed, n)
	}

	return nil
}

// recoverMalformed turns a flatbuffers out-of-range panic into ErrMalformed
// and drops the partly decoded message.
func recoverMalformed[T any](msg **T, err *error) {
	if r := recover(); r != nil {
		*msg = nil
		*err = fmt.Errorf("%w: %v", ErrMalformed, r)
	}
}
