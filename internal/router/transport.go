package router

import (
	"context"

	"LedgerRouter/internal/network"
)

// QUICTransport reaches shards through a dial-only network node.
type QUICTransport struct {
	node *network.Node // node holds one connection per shard address
}

// NewQUICTransport wraps node.
func NewQUICTransport(node *network.Node) *QUICTransport {
	return &QUICTransport{node: node}
}

// Dial connects to addr; the node keeps the connection alive afterwards.
func (t *QUICTransport) Dial(ctx context.Context, addr string) error {
	_, err := t.node.Connect(ctx, addr)
	return err
}

// Request sends data to the shard at addr, dialing first if needed.
func (t *QUICTransport) Request(ctx context.Context, addr string, data []byte) ([]byte, error) {
	peer := t.node.Peer(addr)

	if peer == nil {
		var err error

		peer, err = t.node.Connect(ctx, addr)
		if err != nil {
			return nil, err
		}
	}

	return peer.Request(ctx, data)
}

// Connected reports whether a connection to addr is open.
func (t *QUICTransport) Connected(addr string) bool {
	return t.node.Peer(addr) != nil
}

// Forget closes the connection to addr and stops redialing it.
func (t *QUICTransport) Forget(addr string) {
	t.node.Forget(addr)
}
