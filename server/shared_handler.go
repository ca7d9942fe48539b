package server

import (
	"context"
	"sync"

	"github.com/henrypark/dbproxy/handler"
	"github.com/henrypark/dbproxy/packet"
)

// sharedHandler serializes calls into a handler.Handler that is not
// required to be re-entrant. The proxy, not the handler, is responsible
// for this: a single handler instance is attached to both pipes of every
// connection the Server manages.
type sharedHandler struct {
	mu    sync.Mutex
	inner handler.Handler
}

func newSharedHandler(h handler.Handler) *sharedHandler {
	return &sharedHandler{inner: h}
}

func (s *sharedHandler) HandleRequest(ctx context.Context, p *packet.Packet) (*packet.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.HandleRequest(ctx, p)
}

func (s *sharedHandler) HandleResponse(ctx context.Context, p *packet.Packet) (*packet.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.HandleResponse(ctx, p)
}

// Forget delegates to the wrapped handler's Forget, if it has one, so that
// server.forgetConn's optional-interface check still reaches a handler
// wrapped by sharedHandler.
func (s *sharedHandler) Forget(connID string) {
	if f, ok := s.inner.(connForgetter); ok {
		f.Forget(connID)
	}
}
