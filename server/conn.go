package server

import (
	"context"
	"fmt"
	"net"

	"github.com/henrypark/dbproxy/handler"
	"github.com/henrypark/dbproxy/packet"
	"github.com/henrypark/dbproxy/pipe"
)

// shortCircuitCapacity bounds the channel each direction uses to inject
// packets onto its peer's write path.
const shortCircuitCapacity = 128

// createPipes dials the upstream, wires a forward and a backward Pipe back
// to back, and runs both plus the per-connection shutdown receiver. The
// first of the three to complete tears down the connection.
func createPipes(parentCtx context.Context, name, upstreamAddr string, dialect packet.Dialect, clientConn net.Conn, h handler.Handler, connShutdown <-chan struct{}) error {
	upstreamConn, err := net.Dial("tcp", upstreamAddr)
	if err != nil {
		_ = clientConn.Close()
		return fmt.Errorf("server: %s: dial upstream: %w", name, err)
	}

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	ctx = handler.WithConnID(ctx, name)

	go func() {
		select {
		case <-connShutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	fwdToBwd := make(chan *packet.Packet, shortCircuitCapacity)
	bwdToFwd := make(chan *packet.Packet, shortCircuitCapacity)

	forward := pipe.New(name+":forward", dialect, handler.Forward, clientConn, upstreamConn, h, fwdToBwd, bwdToFwd)
	backward := pipe.New(name+":backward", dialect, handler.Backward, upstreamConn, clientConn, h, bwdToFwd, fwdToBwd)

	errCh := make(chan error, 2)
	go func() { errCh <- forward.Run(ctx) }()
	go func() { errCh <- backward.Run(ctx) }()

	first := <-errCh
	cancel()
	_ = clientConn.Close()
	_ = upstreamConn.Close()
	<-errCh

	return first
}
