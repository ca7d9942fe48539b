package counter

import (
	"context"
	"testing"

	"github.com/henrypark/dbproxy/packet"
)

func mariaDBQueryFrame(sql string) []byte {
	payload := append([]byte{0x03}, sql...)
	l := len(payload)
	frame := []byte{byte(l), byte(l >> 8), byte(l >> 16), 0}
	return append(frame, payload...)
}

func TestHandlerCountsByCommand(t *testing.T) {
	h := New()
	ctx := context.Background()

	queries := []string{"SELECT 1", "select 2", "INSERT INTO t VALUES (1)"}
	for _, q := range queries {
		pkt := packet.New(packet.MariaDB, mariaDBQueryFrame(q))
		if _, err := h.HandleRequest(ctx, pkt); err != nil {
			t.Fatalf("HandleRequest: %v", err)
		}
	}

	snap := h.Snapshot()
	if snap["select"] != 2 {
		t.Fatalf("select count = %d, want 2", snap["select"])
	}
	if snap["insert"] != 1 {
		t.Fatalf("insert count = %d, want 1", snap["insert"])
	}
}

func TestHandlerIgnoresNonQueryPackets(t *testing.T) {
	h := New()
	pingFrame := []byte{1, 0, 0, 0, 0x0e}
	pkt := packet.New(packet.MariaDB, pingFrame)

	if _, err := h.HandleRequest(context.Background(), pkt); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if len(h.Snapshot()) != 0 {
		t.Fatalf("expected no counts recorded for a non-query packet")
	}
}
