package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/henrypark/dbproxy/packet"
)

type noopHandler struct{}

func (noopHandler) HandleRequest(_ context.Context, p *packet.Packet) (*packet.Packet, error) {
	return p, nil
}

func (noopHandler) HandleResponse(_ context.Context, p *packet.Packet) (*packet.Packet, error) {
	return p, nil
}

// startEchoUpstream starts a bare TCP listener that echoes back whatever it
// reads, standing in for a real MariaDB/PostgreSQL server.
func startEchoUpstream(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()
	t.Cleanup(func() { _ = l.Close() })
	return l.Addr().String()
}

func mariaDBFrame(seq byte, payload []byte) []byte {
	l := len(payload)
	frame := make([]byte, 4+l)
	frame[0] = byte(l)
	frame[1] = byte(l >> 8)
	frame[2] = byte(l >> 16)
	frame[3] = seq
	copy(frame[4:], payload)
	return frame
}

func TestServerRelaysClientToUpstreamAndBack(t *testing.T) {
	upstream := startEchoUpstream(t)

	srv, err := New("127.0.0.1:0", packet.MariaDB, upstream)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- srv.Run(ctx, noopHandler{}) }()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frame := mariaDBFrame(0, append([]byte{0x03}, "SELECT 1 FROM DUAL"...))
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make([]byte, len(frame))
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatalf("echoed frame = %x, want %x", got, frame)
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
}

func TestServerShutdownTerminatesLiveConnections(t *testing.T) {
	upstream := startEchoUpstream(t)

	srv, err := New("127.0.0.1:0", packet.MariaDB, upstream)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan error, 1)
	go func() { runDone <- srv.Run(ctx, noopHandler{}) }()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	cancel()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected connection to be closed after server shutdown")
	}
}
