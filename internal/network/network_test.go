package network

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"
)

// generateTestKey generates a random ed25519 key pair for testing.
func generateTestKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	return priv
}

// startServer starts a listening node that answers with handler.
func startServer(t *testing.T, key ed25519.PrivateKey, handler RequestHandler) *Node {
	t.Helper()

	server, err := NewNode(Config{PrivateKey: key, ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	server.OnRequest(handler)

	if err := server.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	return server
}

// newDialer creates a dial-only node.
func newDialer(t *testing.T, reconnectDelay time.Duration) *Node {
	t.Helper()

	client, err := NewNode(Config{PrivateKey: generateTestKey(t), ReconnectDelay: reconnectDelay})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	return client
}

func echo(p *Peer, data []byte) ([]byte, error) {
	return append([]byte("echo:"), data...), nil
}

// TestNodeStartStop tests starting and stopping a node.
func TestNodeStartStop(t *testing.T) {
	node := startServer(t, generateTestKey(t), echo)

	if node.Addr() == "" {
		t.Fatal("listening node has no address")
	}

	if err := node.Close(); err != nil {
		t.Fatalf("close node: %v", err)
	}
}

// TestNodeRequiresKey tests that a node cannot be created without a key.
func TestNodeRequiresKey(t *testing.T) {
	if _, err := NewNode(Config{}); err == nil {
		t.Fatal("expected error without private key")
	}
}

// TestDialOnlyNodeCannotStart tests that Start fails without a listen address.
func TestDialOnlyNodeCannotStart(t *testing.T) {
	client := newDialer(t, 0)
	defer client.Close()

	if err := client.Start(); err == nil {
		t.Fatal("expected error starting a dial-only node")
	}
}

// TestNodeConnect tests connecting a dial-only node to a server.
func TestNodeConnect(t *testing.T) {
	serverKey := generateTestKey(t)
	server := startServer(t, serverKey, echo)
	defer server.Close()

	client := newDialer(t, 0)
	defer client.Close()

	peer, err := client.Connect(context.Background(), server.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if !bytes.Equal(peer.PublicKey(), serverKey.Public().(ed25519.PublicKey)) {
		t.Error("peer public key mismatch")
	}

	if peer.Address() != server.Addr() {
		t.Errorf("peer address: got %s, want %s", peer.Address(), server.Addr())
	}

	if client.Peer(server.Addr()) != peer {
		t.Error("Peer should return the connected peer")
	}

	// A second Connect reuses the existing connection
	again, err := client.Connect(context.Background(), server.Addr())
	if err != nil {
		t.Fatalf("connect again: %v", err)
	}

	if again != peer {
		t.Error("Connect should reuse the existing peer")
	}

	time.Sleep(100 * time.Millisecond)

	if peerCount(server) != 1 {
		t.Errorf("server peer count: got %d, want 1", peerCount(server))
	}
}

// TestRequestResponse tests bidirectional stream request/response.
func TestRequestResponse(t *testing.T) {
	server := startServer(t, generateTestKey(t), echo)
	defer server.Close()

	client := newDialer(t, 0)
	defer client.Close()

	peer, err := client.Connect(context.Background(), server.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	response, err := peer.Request(context.Background(), []byte("hello"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	expected := []byte("echo:hello")
	if !bytes.Equal(response, expected) {
		t.Errorf("response mismatch: got %q, want %q", response, expected)
	}
}

// TestLargeRequest tests a request of 1 MB.
func TestLargeRequest(t *testing.T) {
	server := startServer(t, generateTestKey(t), func(p *Peer, data []byte) ([]byte, error) {
		return data, nil
	})
	defer server.Close()

	client := newDialer(t, 0)
	defer client.Close()

	peer, err := client.Connect(context.Background(), server.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	large := make([]byte, 1<<20)
	for i := range large {
		large[i] = byte(i % 256)
	}

	response, err := peer.Request(context.Background(), large)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if !bytes.Equal(response, large) {
		t.Error("large response mismatch")
	}
}

// TestConcurrentRequests tests many requests sharing one connection.
func TestConcurrentRequests(t *testing.T) {
	server := startServer(t, generateTestKey(t), echo)
	defer server.Close()

	client := newDialer(t, 0)
	defer client.Close()

	peer, err := client.Connect(context.Background(), server.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	const numRequests = 50

	var wg sync.WaitGroup
	wg.Add(numRequests)

	for i := 0; i < numRequests; i++ {
		go func(i int) {
			defer wg.Done()

			msg := []byte(fmt.Sprintf("req-%d", i))

			response, err := peer.Request(context.Background(), msg)
			if err != nil {
				t.Errorf("request %d: %v", i, err)
				return
			}

			if !bytes.Equal(response, append([]byte("echo:"), msg...)) {
				t.Errorf("request %d: got %q", i, response)
			}
		}(i)
	}

	wg.Wait()
}

// TestRequestTimeout tests request timeout handling.
func TestRequestTimeout(t *testing.T) {
	server := startServer(t, generateTestKey(t), func(p *Peer, data []byte) ([]byte, error) {
		time.Sleep(500 * time.Millisecond)
		return []byte("late"), nil
	})
	defer server.Close()

	client := newDialer(t, 0)
	defer client.Close()

	peer, err := client.Connect(context.Background(), server.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := peer.Request(ctx, []byte("hello")); err == nil {
		t.Error("expected timeout error")
	}
}

// TestRequestHandlerError tests that a failing handler surfaces as an error.
func TestRequestHandlerError(t *testing.T) {
	server := startServer(t, generateTestKey(t), func(p *Peer, data []byte) ([]byte, error) {
		return nil, fmt.Errorf("boom")
	})
	defer server.Close()

	client := newDialer(t, 0)
	defer client.Close()

	peer, err := client.Connect(context.Background(), server.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := peer.Request(ctx, []byte("hello")); err == nil {
		t.Error("expected error from failing handler")
	}
}

// TestConnectUnreachable tests that dialing a closed port fails.
func TestConnectUnreachable(t *testing.T) {
	server := startServer(t, generateTestKey(t), echo)
	addr := server.Addr()
	server.Close()

	client := newDialer(t, 0)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := client.Connect(ctx, addr); err == nil {
		t.Fatal("expected dial error")
	}
}

// TestForget tests that Forget closes the connection and drops the peer.
func TestForget(t *testing.T) {
	server := startServer(t, generateTestKey(t), echo)
	defer server.Close()

	client := newDialer(t, 0)
	defer client.Close()

	peer, err := client.Connect(context.Background(), server.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	client.Forget(server.Addr())

	if client.Peer(server.Addr()) != nil {
		t.Error("peer should be removed after Forget")
	}

	if _, err := peer.Request(context.Background(), []byte("hello")); err == nil {
		t.Error("request on forgotten peer should fail")
	}
}

// TestNodeDisconnect tests that the server drops a peer whose client closed.
func TestNodeDisconnect(t *testing.T) {
	server := startServer(t, generateTestKey(t), echo)
	defer server.Close()

	client := newDialer(t, 0)

	if _, err := client.Connect(context.Background(), server.Addr()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	client.Close()

	deadline := time.Now().Add(5 * time.Second)
	for peerCount(server) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("server peer count: got %d, want 0", peerCount(server))
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// TestNodeReconnect tests automatic reconnection after a server restart.
func TestNodeReconnect(t *testing.T) {
	serverKey := generateTestKey(t)
	server := startServer(t, serverKey, echo)
	addr := server.Addr()

	client := newDialer(t, 100*time.Millisecond)
	defer client.Close()

	if _, err := client.Connect(context.Background(), addr); err != nil {
		t.Fatalf("connect: %v", err)
	}

	server.Close()

	// Restart on the same address
	restarted, err := NewNode(Config{PrivateKey: serverKey, ListenAddr: addr})
	if err != nil {
		t.Fatalf("create restarted server: %v", err)
	}
	restarted.OnRequest(echo)

	if err := restarted.Start(); err != nil {
		t.Skipf("address %s not reusable: %v", addr, err)
	}
	defer restarted.Close()

	deadline := time.Now().Add(10 * time.Second)
	for {
		if peer := client.Peer(addr); peer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_, err := peer.Request(ctx, []byte("ping"))
			cancel()

			if err == nil {
				return
			}
		}

		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for reconnection")
		}

		time.Sleep(100 * time.Millisecond)
	}
}

// TestFrameRoundTrip tests the length-prefixed framing.
func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	if err := writeFrame(&buf, []byte("payload")); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	if buf.Len() != lengthPrefixSize+len("payload") {
		t.Fatalf("frame size: got %d", buf.Len())
	}

	got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	if string(got) != "payload" {
		t.Errorf("payload mismatch: got %q", got)
	}
}

// TestFrameTooLarge tests that oversized frames are rejected on both sides.
func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer

	if err := writeFrame(&buf, make([]byte, maxMessageSize+1)); err == nil {
		t.Error("expected error writing oversized frame")
	}

	// Length prefix claims more than the maximum
	buf.Reset()
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})

	if _, err := readFrame(&buf); err == nil {
		t.Error("expected error reading oversized frame")
	}
}

// TestFrameTruncated tests that a short payload is an error.
func TestFrameTruncated(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 10, 'a', 'b'})

	if _, err := readFrame(buf); err == nil {
		t.Error("expected error reading truncated frame")
	}
}

// peerCount returns the number of connected peers of n.
func peerCount(n *Node) int {
	n.peersMu.RLock()
	defer n.peersMu.RUnlock()

	return len(n.peers)
}
