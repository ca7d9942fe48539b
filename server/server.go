// Package server implements the listener and per-connection orchestration
// that pairs every accepted client with an upstream connection and two
// Pipes wired back to back.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/henrypark/dbproxy/handler"
	"github.com/henrypark/dbproxy/metrics"
	"github.com/henrypark/dbproxy/packet"
)

// Server owns a bound listener and the dialect/upstream pair every accepted
// connection is proxied against.
type Server struct {
	dialect      packet.Dialect
	upstreamAddr string
	listener     net.Listener

	mu              sync.Mutex
	shutdownSignals []chan struct{}
}

// New binds a listener on bindAddr. Bind failure is process-fatal and is
// reported to the caller.
func New(bindAddr string, dialect packet.Dialect, upstreamAddr string) (*Server, error) {
	l, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("server: listen: %w", err)
	}
	return &Server{
		dialect:      dialect,
		upstreamAddr: upstreamAddr,
		listener:     l,
	}, nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close closes the underlying listener without waiting for in-flight
// connections to finish.
func (s *Server) Close() error {
	return s.listener.Close()
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// Run wraps h in a mutual-exclusion wrapper and loops accepting
// connections until ctx is done or the listener's accept loop ends. On
// ctx.Done it fires every per-connection shutdown signal and returns.
func (s *Server) Run(ctx context.Context, h handler.Handler) error {
	shared := newSharedHandler(h)

	accepts := make(chan acceptResult)
	go s.acceptLoop(ctx, accepts)

	for {
		select {
		case <-ctx.Done():
			s.shutdownAll()
			return nil

		case res, ok := <-accepts:
			if !ok {
				return nil
			}
			if res.err != nil {
				log.Printf("server: accept: %v", res.err)
				return fmt.Errorf("server: accept: %w", res.err)
			}
			s.handleConn(ctx, res.conn, shared)
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context, accepts chan<- acceptResult) {
	defer close(accepts)
	for {
		conn, err := s.listener.Accept()
		select {
		case accepts <- acceptResult{conn: conn, err: err}:
		case <-ctx.Done():
			if conn != nil {
				_ = conn.Close()
			}
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, h handler.Handler) {
	name := remoteAddrString(conn)

	connShutdown := make(chan struct{})
	s.mu.Lock()
	s.shutdownSignals = append(s.shutdownSignals, connShutdown)
	s.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	go func() {
		defer metrics.ConnectionsActive.Dec()
		defer s.forgetShutdown(connShutdown)
		defer forgetConn(h, name)
		if err := createPipes(ctx, name, s.upstreamAddr, s.dialect, conn, h, connShutdown); err != nil {
			log.Printf("server: %s: %v", name, err)
		}
	}()
}

func (s *Server) shutdownAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.shutdownSignals {
		close(ch)
	}
	s.shutdownSignals = nil
}

func (s *Server) forgetShutdown(target chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ch := range s.shutdownSignals {
		if ch == target {
			s.shutdownSignals = append(s.shutdownSignals[:i], s.shutdownSignals[i+1:]...)
			return
		}
	}
}

// connForgetter is implemented by handlers that key per-connection state by
// connection id (see handler.WithConnID) and need a close hook to bound
// their memory. handlers/capture.Handler implements this.
type connForgetter interface {
	Forget(connID string)
}

func forgetConn(h handler.Handler, connID string) {
	if f, ok := h.(connForgetter); ok {
		f.Forget(connID)
	}
}

func remoteAddrString(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return "Unknown"
}
