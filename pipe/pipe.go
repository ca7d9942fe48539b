// Package pipe implements the one-direction streaming engine that
// reassembles a byte source into packets, hands each to a handler, and
// drains the transformed bytes to a sink.
package pipe

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/henrypark/dbproxy/handler"
	"github.com/henrypark/dbproxy/metrics"
	"github.com/henrypark/dbproxy/packet"
)

const (
	readBufSize  = 4096
	maxFrameSize = 64 * 1024 * 1024
)

// State is the pipe's lifecycle stage.
type State int

const (
	Running State = iota
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Pipe is a one-directional forwarder bound to one source/sink pair. It
// never owns the handler; the handler is shared across both directions of
// a connection and must already serialize its own calls.
type Pipe struct {
	name      string
	dialect   packet.Dialect
	direction handler.Direction
	source    io.Reader
	sink      io.Writer
	handler   handler.Handler

	// peerIn is the receive end of this pipe's own short-circuit path:
	// packets the peer pipe injects directly onto this pipe's sink.
	peerIn <-chan *packet.Packet
	// peerOut is the send end onto the peer pipe's write path, used by
	// Inject to synthesize a packet on the opposite direction without a
	// round trip through the handler.
	peerOut chan<- *packet.Packet

	state State
}

// New binds a Pipe's source, sink, and shared handler. peerOut is the send
// end of the short-circuit channel feeding the peer pipe's sink; peerIn is
// the receive end feeding this pipe's own sink.
func New(name string, dialect packet.Dialect, direction handler.Direction, source io.Reader, sink io.Writer, h handler.Handler, peerOut chan<- *packet.Packet, peerIn <-chan *packet.Packet) *Pipe {
	return &Pipe{
		name:      name,
		dialect:   dialect,
		direction: direction,
		source:    source,
		sink:      sink,
		handler:   h,
		peerOut:   peerOut,
		peerIn:    peerIn,
		state:     Running,
	}
}

// Inject sends pkt directly onto the peer pipe's write path, bypassing the
// handler. This is the mechanism external collaborators use to synthesize
// a response without a round trip to the upstream server; injecting into
// the pipe that just produced a packet would recurse, so collaborators
// must only inject onto the opposite pipe.
func (p *Pipe) Inject(pkt *packet.Packet) error {
	if p.peerOut == nil {
		return fmt.Errorf("pipe: %s %s: %w", p.name, p.direction, ErrNoShortCircuit)
	}
	p.peerOut <- pkt
	return nil
}

// State returns the pipe's current lifecycle stage.
func (p *Pipe) State() State {
	return p.state
}

type readResult struct {
	data []byte
	err  error
}

// Run drives the pipe until a read error, a write error, the peer channel
// closing, or ctx cancellation. It always returns a non-nil error: there is
// no clean exit from a pipe's run loop short of its connection ending.
func (p *Pipe) Run(ctx context.Context) error {
	reads := make(chan readResult)
	go p.pump(ctx, reads)

	packetBuf := make([]byte, 0, readBufSize)
	writeBuf := make([]byte, 0, readBufSize)

	for {
		select {
		case <-ctx.Done():
			p.state = Terminated
			return ctx.Err()

		case res, ok := <-reads:
			if !ok {
				p.state = Terminated
				return fmt.Errorf("pipe: %s %s: %w", p.name, p.direction, ErrPeerClosed)
			}
			if res.err != nil {
				p.state = Draining
				if res.err == io.EOF || len(res.data) == 0 {
					return fmt.Errorf("pipe: %s %s: %w", p.name, p.direction, ErrPeerClosed)
				}
				return fmt.Errorf("pipe: %s %s: read: %w", p.name, p.direction, res.err)
			}
			if len(res.data) == 0 {
				p.state = Draining
				return fmt.Errorf("pipe: %s %s: %w", p.name, p.direction, ErrPeerClosed)
			}

			packetBuf = append(packetBuf, res.data...)

			var err error
			writeBuf, packetBuf, err = p.drainPackets(ctx, writeBuf, packetBuf)
			if err != nil {
				p.state = Draining
				return err
			}

			if err := p.flush(&writeBuf); err != nil {
				p.state = Draining
				return fmt.Errorf("pipe: %s %s: write: %w", p.name, p.direction, err)
			}

		case injected, ok := <-p.peerIn:
			if !ok {
				p.state = Draining
				return fmt.Errorf("pipe: %s %s: %w", p.name, p.direction, ErrShortCircuitClosed)
			}
			writeBuf = append(writeBuf, injected.Bytes()...)
			if err := p.flush(&writeBuf); err != nil {
				p.state = Draining
				return fmt.Errorf("pipe: %s %s: write: %w", p.name, p.direction, err)
			}
		}
	}
}

// drainPackets repeatedly extracts complete frames from packetBuf, invokes
// the handler on each, and appends the (possibly transformed) bytes to
// writeBuf. It returns the updated write and packet buffers.
func (p *Pipe) drainPackets(ctx context.Context, writeBuf, packetBuf []byte) ([]byte, []byte, error) {
	for {
		total, ok := tryFrame(p.dialect, packetBuf)
		if total > maxFrameSize {
			return writeBuf, packetBuf, fmt.Errorf("pipe: %s %s: %w", p.name, p.direction, ErrFrameTooLarge)
		}
		if !ok {
			return writeBuf, packetBuf, nil
		}

		frame := make([]byte, total)
		copy(frame, packetBuf[:total])
		packetBuf = packetBuf[total:]

		pkt := packet.New(p.dialect, frame)
		typeLabel := typeLabelFor(pkt)

		var (
			out *packet.Packet
			err error
		)
		start := time.Now()
		if p.direction == handler.Forward {
			out, err = p.handler.HandleRequest(ctx, pkt)
		} else {
			out, err = p.handler.HandleResponse(ctx, pkt)
		}
		metrics.HandlerDuration.WithLabelValues(p.direction.String()).Observe(time.Since(start).Seconds())
		if err != nil {
			// Handler-local failures (classification, UTF-8) are not
			// connection-fatal: forward the original frame unchanged.
			log.Printf("pipe: %s %s: handler error, forwarding original frame: %v", p.name, p.direction, err)
			writeBuf = append(writeBuf, pkt.Bytes()...)
			metrics.PacketsTotal.WithLabelValues(p.dialect.String(), p.direction.String(), typeLabel).Inc()
			metrics.PacketBytesTotal.WithLabelValues(p.dialect.String(), p.direction.String()).Add(float64(len(pkt.Bytes())))
			continue
		}
		if len(out.Bytes()) == 0 {
			metrics.PacketsDroppedTotal.WithLabelValues(p.dialect.String(), p.direction.String()).Inc()
			continue
		}
		writeBuf = append(writeBuf, out.Bytes()...)
		metrics.PacketsTotal.WithLabelValues(p.dialect.String(), p.direction.String(), typeLabel).Inc()
		metrics.PacketBytesTotal.WithLabelValues(p.dialect.String(), p.direction.String()).Add(float64(len(out.Bytes())))
	}
}

// typeLabelFor returns a low-cardinality Prometheus label for a packet's
// type, falling back to "unknown" for frames that fail classification
// rather than feeding an unbounded label value into a counter vector.
func typeLabelFor(pkt *packet.Packet) string {
	t, err := pkt.Type()
	if err != nil {
		return "unknown"
	}
	return t.String()
}

// flush attempts a single non-accumulating write to the sink and drains
// exactly the bytes actually written; the sink may accept less than
// offered, and the remainder stays for the next iteration.
func (p *Pipe) flush(writeBuf *[]byte) error {
	if len(*writeBuf) == 0 {
		return nil
	}
	n, err := p.sink.Write(*writeBuf)
	*writeBuf = (*writeBuf)[n:]
	return err
}

// pump repeatedly reads from the source and forwards results on reads. It
// exits once a read fails or ctx is done, never sending after ctx.Done()
// wins so it cannot block forever on an abandoned pipe.
func (p *Pipe) pump(ctx context.Context, reads chan<- readResult) {
	buf := make([]byte, readBufSize)
	for {
		n, err := p.source.Read(buf)
		data := buf[:n]

		select {
		case reads <- readResult{data: data, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}
