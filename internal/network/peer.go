package network

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"LedgerRouter/internal/logger"
)

const (
	// defaultRequestTimeout is the default timeout for Request calls.
	defaultRequestTimeout = 30 * time.Second
)

// Peer represents a connection to a remote node.
type Peer struct {
	publicKey ed25519.PublicKey // publicKey is the remote node's ed25519 public key
	address   string            // address is the remote address
	conn      *quic.Conn        // conn is the underlying QUIC connection
	node      *Node             // node is the parent node
	closed    atomic.Bool       // closed indicates if the peer is closed
}

// PublicKey returns the remote node's ed25519 public key.
func (p *Peer) PublicKey() ed25519.PublicKey {
	return p.publicKey
}

// Address returns the remote address.
func (p *Peer) Address() string {
	return p.address
}

// Close closes the peer connection.
func (p *Peer) Close() error {
	if p.closed.Swap(true) {
		return nil // Already closed
	}

	return p.conn.CloseWithError(0, "closed")
}

// Request sends data on a new bidirectional stream and waits for the
// response. The context bounds the whole exchange.
func (p *Peer) Request(ctx context.Context, data []byte) ([]byte, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("peer is closed")
	}

	stream, err := p.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream:\n%w", err)
	}
	defer stream.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultRequestTimeout)
	}
	stream.SetDeadline(deadline)

	if err := writeFrame(stream, data); err != nil {
		return nil, fmt.Errorf("write request:\n%w", err)
	}

	response, err := readFrame(stream)
	if err != nil {
		return nil, fmt.Errorf("read response:\n%w", err)
	}

	return response, nil
}

// serve accepts request streams until the connection ends, then reports the
// disconnect to the node.
func (p *Peer) serve(ctx context.Context) {
	defer p.handleDisconnect()

	for {
		stream, err := p.conn.AcceptStream(ctx)
		if err != nil {
			logger.Debug("peer stream loop ended", "peer", p.address, "error", err)
			return
		}

		go p.handleStream(stream)
	}
}

// handleStream answers a single request stream.
func (p *Peer) handleStream(stream *quic.Stream) {
	defer stream.Close()

	stream.SetDeadline(time.Now().Add(defaultRequestTimeout))

	data, err := readFrame(stream)
	if err != nil {
		logger.Debug("request read error", "peer", p.address, "error", err)
		return
	}

	response, err := p.node.callOnRequest(p, data)
	if err != nil {
		logger.Warn("request handler failed", "peer", p.address, "error", err)
		stream.CancelWrite(1)
		return
	}

	if err := writeFrame(stream, response); err != nil {
		logger.Debug("response write error", "peer", p.address, "error", err)
	}
}

// handleDisconnect marks the peer closed and notifies the node once.
func (p *Peer) handleDisconnect() {
	if p.closed.Swap(true) {
		// Closed locally (Forget, Close, replaced); still drop it from the registry.
		p.node.removePeer(p)
		return
	}

	p.node.handlePeerDisconnect(p)
}
