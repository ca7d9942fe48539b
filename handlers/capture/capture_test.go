package capture

import (
	"context"
	"testing"
	"time"

	"github.com/henrypark/dbproxy/broker"
	"github.com/henrypark/dbproxy/handler"
	"github.com/henrypark/dbproxy/packet"
	"github.com/henrypark/dbproxy/proxy"
)

func mariaFrame(seq byte, payload []byte) []byte {
	l := len(payload)
	frame := []byte{byte(l), byte(l >> 8), byte(l >> 16), seq}
	return append(frame, payload...)
}

func TestMariaDBSimpleQueryPublishesEvent(t *testing.T) {
	b := broker.New(4)
	h := New(b, 5, time.Second, 10*time.Second, 0)
	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	ctx := handler.WithConnID(context.Background(), "conn-1")

	req := packet.New(packet.MariaDB, mariaFrame(0, append([]byte{0x03}, "SELECT 1"...)))
	if _, err := h.HandleRequest(ctx, req); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}

	colCount := packet.New(packet.MariaDB, mariaFrame(1, []byte{0x01}))
	if _, err := h.HandleResponse(ctx, colCount); err != nil {
		t.Fatalf("HandleResponse colcount: %v", err)
	}
	colDef := packet.New(packet.MariaDB, mariaFrame(2, make([]byte, 20)))
	if _, err := h.HandleResponse(ctx, colDef); err != nil {
		t.Fatalf("HandleResponse coldef: %v", err)
	}
	eof1 := packet.New(packet.MariaDB, mariaFrame(3, []byte{0xFE, 0x00, 0x00}))
	if _, err := h.HandleResponse(ctx, eof1); err != nil {
		t.Fatalf("HandleResponse eof1: %v", err)
	}
	eof2 := packet.New(packet.MariaDB, mariaFrame(4, []byte{0xFE, 0x00, 0x00}))
	if _, err := h.HandleResponse(ctx, eof2); err != nil {
		t.Fatalf("HandleResponse eof2: %v", err)
	}

	select {
	case raw := <-events:
		ev := raw.(proxy.Event)
		if ev.Query != "SELECT 1" {
			t.Fatalf("Query = %q, want %q", ev.Query, "SELECT 1")
		}
		if ev.Op != proxy.OpQuery {
			t.Fatalf("Op = %v, want OpQuery", ev.Op)
		}
		if ev.ConnID != "conn-1" {
			t.Fatalf("ConnID = %q, want conn-1", ev.ConnID)
		}
	default:
		t.Fatal("expected an event to be published")
	}
}

func pgFrame(tag byte, payload []byte) []byte {
	l := len(payload) + 4
	frame := []byte{tag, byte(l >> 24), byte(l >> 16), byte(l >> 8), byte(l)}
	return append(frame, payload...)
}

func TestPostgresSimpleQueryPublishesEvent(t *testing.T) {
	b := broker.New(4)
	h := New(b, 5, time.Second, 10*time.Second, 0)
	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	ctx := handler.WithConnID(context.Background(), "conn-2")

	q := packet.New(packet.PostgreSQL, pgFrame('Q', append([]byte("SELECT 1"), 0)))
	if _, err := h.HandleRequest(ctx, q); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}

	select {
	case raw := <-events:
		ev := raw.(proxy.Event)
		if ev.Query != "SELECT 1" {
			t.Fatalf("Query = %q, want %q", ev.Query, "SELECT 1")
		}
	default:
		t.Fatal("expected an event to be published")
	}
}

func TestMariaDBErrorResponseFinalizesEvent(t *testing.T) {
	b := broker.New(4)
	h := New(b, 5, time.Second, 10*time.Second, 0)
	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	ctx := handler.WithConnID(context.Background(), "conn-3")

	req := packet.New(packet.MariaDB, mariaFrame(0, append([]byte{0x03}, "SELECT bogus"...)))
	if _, err := h.HandleRequest(ctx, req); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}

	errPayload := append([]byte{0xFF, 0x2A, 0x04, '#'}, append([]byte("42000"), "bad table"...)...)
	errResp := packet.New(packet.MariaDB, mariaFrame(1, errPayload))
	if _, err := h.HandleResponse(ctx, errResp); err != nil {
		t.Fatalf("HandleResponse: %v", err)
	}

	select {
	case raw := <-events:
		ev := raw.(proxy.Event)
		if ev.Error == "" {
			t.Fatal("expected Error to be populated")
		}
	default:
		t.Fatal("expected an event to be published")
	}
}
