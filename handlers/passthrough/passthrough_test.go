package passthrough

import (
	"context"
	"testing"

	"github.com/henrypark/dbproxy/packet"
)

func TestHandlerForwardsUnchanged(t *testing.T) {
	h := New()
	frame := []byte{0x13, 0x00, 0x00, 0x00, 0x03}
	frame = append(frame, "SELECT 1 FROM DUAL"...)
	pkt := packet.New(packet.MariaDB, frame)

	out, err := h.HandleRequest(context.Background(), pkt)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if out != pkt {
		t.Fatal("expected the same packet to be returned")
	}

	out, err = h.HandleResponse(context.Background(), pkt)
	if err != nil {
		t.Fatalf("HandleResponse: %v", err)
	}
	if out != pkt {
		t.Fatal("expected the same packet to be returned")
	}
}
