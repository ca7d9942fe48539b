package pipe

import "errors"

// ErrPeerClosed is returned by Run when the pipe's source returns a
// zero-byte read, interpreted as EOF.
var ErrPeerClosed = errors.New("pipe: peer closed")

// ErrShortCircuitClosed is returned by Run when the peer's short-circuit
// channel is closed while this pipe is still running.
var ErrShortCircuitClosed = errors.New("pipe: short-circuit channel closed")

// ErrFrameTooLarge is returned by Run when a dialect's declared frame
// length exceeds maxFrameSize.
var ErrFrameTooLarge = errors.New("pipe: frame too large")

// ErrNoShortCircuit is returned by Inject when a pipe was constructed
// without a peer send-end.
var ErrNoShortCircuit = errors.New("pipe: no short-circuit send end configured")
