package protocol

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/types"

	flatbuffers "github.com/google/flatbuffers/go"
)

func testKeyImage(n byte) ledger.KeyImage {
	var ki ledger.KeyImage
	for i := range ki {
		ki[i] = n + byte(i)
	}

	return ki
}

func TestRequestRoundTrip(t *testing.T) {
	req := &QueryRequest{
		BatchID: [BatchIDSize]byte{1, 2, 3},
		Queries: []ledger.KeyImageQuery{
			{KeyImage: testKeyImage(1)},
			{KeyImage: testKeyImage(2)},
			{KeyImage: testKeyImage(3)},
		},
	}

	data := EncodeRequest(req)

	if data[0] != MsgTypeQueryRequest {
		t.Fatalf("type byte: got 0x%02x, want 0x%02x", data[0], MsgTypeQueryRequest)
	}

	got, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}

	if got.BatchID != req.BatchID {
		t.Errorf("batch id mismatch: got %x, want %x", got.BatchID, req.BatchID)
	}

	if len(got.Queries) != len(req.Queries) {
		t.Fatalf("query count: got %d, want %d", len(got.Queries), len(req.Queries))
	}

	for i := range req.Queries {
		if got.Queries[i] != req.Queries[i] {
			t.Errorf("query %d mismatch", i)
		}
	}
}

func TestRequestEmptyBatch(t *testing.T) {
	got, err := DecodeRequest(EncodeRequest(&QueryRequest{}))
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}

	if len(got.Queries) != 0 {
		t.Errorf("expected no queries, got %d", len(got.Queries))
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &QueryResponse{
		BatchID: [BatchIDSize]byte{9},
		ShardID: "shard-a",
		Results: []ledger.KeyImageResult{
			{
				KeyImage:            testKeyImage(1),
				SpentAt:             42,
				Timestamp:           math.MaxUint64,
				TimestampResultCode: ledger.WatcherBehind,
				KeyImageResultCode:  ledger.Spent,
			},
			{
				KeyImage:            testKeyImage(2),
				TimestampResultCode: ledger.TimestampFound,
				KeyImageResultCode:  ledger.NotSpent,
			},
		},
	}

	got, err := DecodeResponse(EncodeResponse(resp))
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if got.ShardID != "shard-a" {
		t.Errorf("shard id: got %q", got.ShardID)
	}

	if got.BatchID != resp.BatchID {
		t.Errorf("batch id mismatch")
	}

	if len(got.Results) != 2 {
		t.Fatalf("result count: got %d, want 2", len(got.Results))
	}

	for i := range resp.Results {
		if got.Results[i] != resp.Results[i] {
			t.Errorf("result %d: got %+v, want %+v", i, got.Results[i], resp.Results[i])
		}
	}
}

func TestDecodeResponse_UnknownCodes(t *testing.T) {
	builder := flatbuffers.NewBuilder(128)
	ki := testKeyImage(5)

	kiVec := builder.CreateByteVector(ki[:])
	types.KeyImageResultStart(builder)
	types.KeyImageResultAddKeyImage(builder, kiVec)
	types.KeyImageResultAddTimestampResultCode(builder, 77)
	types.KeyImageResultAddKeyImageResultCode(builder, 99)
	res := types.KeyImageResultEnd(builder)

	resultsVec := prependOffsets(builder, []flatbuffers.UOffsetT{res}, types.QueryResponseStartResultsVector)
	batchVec := builder.CreateByteVector(make([]byte, BatchIDSize))

	types.QueryResponseStart(builder)
	types.QueryResponseAddBatchId(builder, batchVec)
	types.QueryResponseAddResults(builder, resultsVec)
	builder.Finish(types.QueryResponseEnd(builder))

	got, err := DecodeResponse(frame(MsgTypeQueryResponse, builder.FinishedBytes()))
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if got.Results[0].KeyImageResultCode != ledger.KeyImageError {
		t.Errorf("key image code: got %v, want KeyImageError", got.Results[0].KeyImageResultCode)
	}

	if got.Results[0].TimestampResultCode != ledger.Unavailable {
		t.Errorf("timestamp code: got %v, want Unavailable", got.Results[0].TimestampResultCode)
	}
}

func TestDecodeRequest_BadKeyImageWidth(t *testing.T) {
	builder := flatbuffers.NewBuilder(128)

	kiVec := builder.CreateByteVector([]byte{1, 2, 3})
	types.KeyImageQueryStart(builder)
	types.KeyImageQueryAddKeyImage(builder, kiVec)
	q := types.KeyImageQueryEnd(builder)

	queriesVec := prependOffsets(builder, []flatbuffers.UOffsetT{q}, types.QueryRequestStartQueriesVector)
	batchVec := builder.CreateByteVector(make([]byte, BatchIDSize))

	types.QueryRequestStart(builder)
	types.QueryRequestAddBatchId(builder, batchVec)
	types.QueryRequestAddQueries(builder, queriesVec)
	builder.Finish(types.QueryRequestEnd(builder))

	if _, err := DecodeRequest(frame(MsgTypeQueryRequest, builder.FinishedBytes())); err == nil {
		t.Fatal("expected error for short key image")
	}
}

func TestDecode_WrongType(t *testing.T) {
	data := EncodeRequest(&QueryRequest{})

	if _, err := DecodeResponse(data); err == nil {
		t.Fatal("expected error decoding request as response")
	}
}

func TestDecode_Empty(t *testing.T) {
	if _, err := DecodeRequest(nil); err == nil {
		t.Fatal("expected error for empty message")
	}

	if _, err := DecodeResponse([]byte{MsgTypeQueryResponse}); err == nil {
		t.Fatal("expected error for truncated message")
	}
}

func TestDecode_Garbage(t *testing.T) {
	data := []byte{MsgTypeQueryResponse, 0xff, 0xff, 0xff, 0x7f, 0x01, 0x02, 0x03, 0x04}

	_, err := DecodeResponse(data)
	if err == nil {
		t.Fatal("expected error for garbage")
	}

	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

// vectorStart returns the position in data of the first element of the
// root table's vector at vtable slot, with the vector's length four bytes
// before it.
func vectorStart(t *testing.T, data []byte, slot flatbuffers.VOffsetT) int {
	t.Helper()

	body := data[1:]
	tab := types.GetRootAsQueryRequest(body, 0).Table()

	o := tab.Offset(slot)
	if o == 0 {
		t.Fatalf("vector at slot %d is absent", slot)
	}

	return 1 + int(tab.Vector(flatbuffers.UOffsetT(o)))
}

func testResponse() *QueryResponse {
	return &QueryResponse{
		BatchID: [BatchIDSize]byte{9},
		ShardID: "shard-0",
		Results: []ledger.KeyImageResult{
			ledger.DefaultResult(ledger.KeyImageQuery{KeyImage: testKeyImage(1)}),
		},
	}
}

func TestDecode_HugeVectorLength(t *testing.T) {
	lengths := []uint32{0x7fffffff, 0xffffffff, MaxQueries + 1, 64}

	for _, n := range lengths {
		req := EncodeRequest(&QueryRequest{Queries: []ledger.KeyImageQuery{{KeyImage: testKeyImage(1)}}})
		start := vectorStart(t, req, 6)
		binary.LittleEndian.PutUint32(req[start-4:], n)

		got, err := DecodeRequest(req)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("request length %#x: expected ErrMalformed, got %v", n, err)
		}
		if got != nil {
			t.Errorf("request length %#x: expected nil request", n)
		}

		resp := EncodeResponse(testResponse())
		start = vectorStart(t, resp, 8)
		binary.LittleEndian.PutUint32(resp[start-4:], n)

		gotResp, err := DecodeResponse(resp)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("response length %#x: expected ErrMalformed, got %v", n, err)
		}
		if gotResp != nil {
			t.Errorf("response length %#x: expected nil response", n)
		}
	}
}

func TestDecodeRequest_TooManyQueries(t *testing.T) {
	builder := flatbuffers.NewBuilder(4 * (MaxQueries + 64))

	kiVec := builder.CreateByteVector(make([]byte, ledger.KeyImageSize))
	types.KeyImageQueryStart(builder)
	types.KeyImageQueryAddKeyImage(builder, kiVec)
	q := types.KeyImageQueryEnd(builder)

	// Every element shares one table, so the body stays small per query.
	offsets := make([]flatbuffers.UOffsetT, MaxQueries+1)
	for i := range offsets {
		offsets[i] = q
	}

	queriesVec := prependOffsets(builder, offsets, types.QueryRequestStartQueriesVector)
	batchVec := builder.CreateByteVector(make([]byte, BatchIDSize))

	types.QueryRequestStart(builder)
	types.QueryRequestAddBatchId(builder, batchVec)
	types.QueryRequestAddQueries(builder, queriesVec)
	builder.Finish(types.QueryRequestEnd(builder))

	_, err := DecodeRequest(frame(MsgTypeQueryRequest, builder.FinishedBytes()))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeResponse_PanicReturnsNil(t *testing.T) {
	data := EncodeResponse(testResponse())

	// Point the only result at an offset far outside the buffer.
	start := vectorStart(t, data, 8)
	binary.LittleEndian.PutUint32(data[start:], 0x7ffffff0)

	got, err := DecodeResponse(data)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	if got != nil {
		t.Errorf("expected nil response, got %+v", got)
	}
}
