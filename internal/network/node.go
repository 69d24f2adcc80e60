package network

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"LedgerRouter/internal/logger"
)

const (
	// defaultReconnectDelay is the default delay between reconnection attempts.
	defaultReconnectDelay = 2 * time.Second

	// maxReconnectDelay is the maximum delay between reconnection attempts.
	maxReconnectDelay = 60 * time.Second

	// alpnProtocol is the ALPN protocol identifier.
	alpnProtocol = "ledger-router/1"
)

// RequestHandler answers a request received from a peer.
type RequestHandler func(p *Peer, data []byte) ([]byte, error)

// Config holds the configuration for a Node.
type Config struct {
	PrivateKey     ed25519.PrivateKey // PrivateKey is the node's ed25519 private key
	ListenAddr     string             // ListenAddr is the address to listen on; empty for dial-only nodes
	ReconnectDelay time.Duration      // ReconnectDelay is the initial delay between reconnection attempts
}

// Node is a QUIC endpoint. Shards listen and answer requests; the router
// dials shards and keeps those connections alive, redialing with backoff
// when one drops.
type Node struct {
	publicKey  ed25519.PublicKey // publicKey is the node's ed25519 public key
	listenAddr string            // listenAddr is the address to listen on
	tlsConfig  *tls.Config       // tlsConfig is the TLS configuration
	quicConfig *quic.Config      // quicConfig is the QUIC configuration

	listener *quic.Listener // listener is the QUIC listener

	peers   map[string]*Peer // peers maps address to peer
	peersMu sync.RWMutex     // peersMu protects peers

	dialed   map[string]bool // dialed holds addresses to keep connected
	dialedMu sync.RWMutex    // dialedMu protects dialed

	reconnectDelay time.Duration // reconnectDelay is the initial reconnection delay

	onRequest  RequestHandler // onRequest handles incoming requests
	handlersMu sync.RWMutex   // handlersMu protects onRequest

	ctx    context.Context    // ctx is the node's context
	cancel context.CancelFunc // cancel cancels the node's context
	wg     sync.WaitGroup     // wg waits for goroutines to finish
}

// NewNode creates a new network node.
func NewNode(cfg Config) (*Node, error) {
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay == 0 {
		reconnectDelay = defaultReconnectDelay
	}

	tlsConfig, err := newTLSConfig(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		publicKey:      cfg.PrivateKey.Public().(ed25519.PublicKey),
		listenAddr:     cfg.ListenAddr,
		tlsConfig:      tlsConfig,
		quicConfig:     quicConfig,
		peers:          make(map[string]*Peer),
		dialed:         make(map[string]bool),
		reconnectDelay: reconnectDelay,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// PublicKey returns the node's public key.
func (n *Node) PublicKey() ed25519.PublicKey {
	return n.publicKey
}

// Addr returns the listener's address. Returns empty string if not listening.
func (n *Node) Addr() string {
	if n.listener == nil {
		return ""
	}

	return n.listener.Addr().String()
}

// Start begins accepting connections. Dial-only nodes do not need it.
func (n *Node) Start() error {
	if n.listenAddr == "" {
		return fmt.Errorf("listen address is required")
	}

	listener, err := quic.ListenAddr(n.listenAddr, n.tlsConfig, n.quicConfig)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	n.listener = listener

	n.wg.Add(1)
	go n.acceptLoop()

	return nil
}

// Connect dials addr and keeps the connection alive until Forget(addr) or
// Close. If a connection to addr already exists it is returned.
func (n *Node) Connect(ctx context.Context, addr string) (*Peer, error) {
	n.dialedMu.Lock()
	n.dialed[addr] = true
	n.dialedMu.Unlock()

	if p := n.Peer(addr); p != nil {
		return p, nil
	}

	return n.dial(ctx, addr)
}

// Forget closes the connection to addr and stops reconnecting to it.
func (n *Node) Forget(addr string) {
	n.dialedMu.Lock()
	delete(n.dialed, addr)
	n.dialedMu.Unlock()

	n.peersMu.Lock()
	p := n.peers[addr]
	delete(n.peers, addr)
	n.peersMu.Unlock()

	if p != nil {
		p.Close()
	}
}

// Peer returns the connected peer at addr, or nil.
func (n *Node) Peer(addr string) *Peer {
	n.peersMu.RLock()
	defer n.peersMu.RUnlock()

	return n.peers[addr]
}

// OnRequest sets the handler for incoming requests.
func (n *Node) OnRequest(fn RequestHandler) {
	n.handlersMu.Lock()
	n.onRequest = fn
	n.handlersMu.Unlock()
}

// Close stops the node and closes all connections.
func (n *Node) Close() error {
	n.cancel()

	if n.listener != nil {
		n.listener.Close()
	}

	n.peersMu.Lock()
	for _, p := range n.peers {
		p.Close()
	}
	n.peers = make(map[string]*Peer)
	n.peersMu.Unlock()

	n.wg.Wait()

	return nil
}

// dial opens a connection to addr and registers the peer.
func (n *Node) dial(ctx context.Context, addr string) (*Peer, error) {
	conn, err := quic.DialAddr(ctx, addr, n.tlsConfig, n.quicConfig)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	peer, err := n.setupPeer(conn, addr)
	if err != nil {
		conn.CloseWithError(1, "setup failed")
		return nil, err
	}

	return peer, nil
}

// acceptLoop accepts incoming connections.
func (n *Node) acceptLoop() {
	defer n.wg.Done()

	for {
		conn, err := n.listener.Accept(n.ctx)
		if err != nil {
			return // Listener closed
		}

		if _, err := n.setupPeer(conn, conn.RemoteAddr().String()); err != nil {
			logger.Debug("rejected connection", "remote", conn.RemoteAddr().String(), "error", err)
			conn.CloseWithError(1, "setup failed")
		}
	}
}

// setupPeer creates a Peer from a QUIC connection and starts serving it.
func (n *Node) setupPeer(conn *quic.Conn, addr string) (*Peer, error) {
	pubKey, err := peerPublicKey(conn.ConnectionState().TLS)
	if err != nil {
		return nil, fmt.Errorf("extract public key: %w", err)
	}

	peer := &Peer{
		publicKey: pubKey,
		address:   addr,
		conn:      conn,
		node:      n,
	}

	n.peersMu.Lock()
	old := n.peers[addr]
	n.peers[addr] = peer
	n.peersMu.Unlock()

	if old != nil {
		old.Close()
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		peer.serve(n.ctx)
	}()

	return peer, nil
}

// removePeer drops p from the registry unless it was already replaced.
func (n *Node) removePeer(p *Peer) {
	n.peersMu.Lock()
	if n.peers[p.address] == p {
		delete(n.peers, p.address)
	}
	n.peersMu.Unlock()
}

// handlePeerDisconnect removes a peer and schedules a redial if it was dialed.
func (n *Node) handlePeerDisconnect(p *Peer) {
	n.removePeer(p)

	if !n.wantsConnection(p.address) || n.ctx.Err() != nil {
		return
	}

	logger.Info("peer disconnected, reconnecting", "addr", p.address)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.reconnect(p.address)
	}()
}

// wantsConnection reports whether addr is still a dialed address.
func (n *Node) wantsConnection(addr string) bool {
	n.dialedMu.RLock()
	defer n.dialedMu.RUnlock()

	return n.dialed[addr]
}

// reconnect redials addr with exponential backoff until it succeeds, the
// address is forgotten, or the node closes.
func (n *Node) reconnect(addr string) {
	delay := n.reconnectDelay

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-time.After(delay):
		}

		if !n.wantsConnection(addr) {
			return
		}

		if n.Peer(addr) != nil {
			return // Already reconnected
		}

		if _, err := n.dial(n.ctx, addr); err == nil {
			logger.Info("peer reconnected", "addr", addr)
			return
		}

		delay = min(delay*2, maxReconnectDelay)
	}
}

// callOnRequest calls the request handler if set.
func (n *Node) callOnRequest(p *Peer, data []byte) ([]byte, error) {
	n.handlersMu.RLock()
	fn := n.onRequest
	n.handlersMu.RUnlock()

	if fn == nil {
		return nil, fmt.Errorf("no request handler registered")
	}

	return fn(p, data)
}
