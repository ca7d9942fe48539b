// Package passthrough provides the identity Handler: every packet is
// relayed unchanged. It is useful as a baseline and as a building block
// wrapped by other handlers that only care about one direction.
package passthrough

import (
	"context"

	"github.com/henrypark/dbproxy/packet"
)

// Handler forwards every packet without modification.
type Handler struct{}

// New returns a passthrough Handler.
func New() Handler { return Handler{} }

func (Handler) HandleRequest(_ context.Context, p *packet.Packet) (*packet.Packet, error) {
	return p, nil
}

func (Handler) HandleResponse(_ context.Context, p *packet.Packet) (*packet.Packet, error) {
	return p, nil
}
