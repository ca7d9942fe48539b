package handler

import "context"

type connIDKey struct{}

// WithConnID attaches a connection identifier to ctx. server.Server sets
// this before running a connection's pair of pipes so that a Handler shared
// across every connection can still key per-connection state, per the
// mutual-exclusion discipline described on Handler.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey{}, id)
}

// ConnID retrieves the connection identifier set by WithConnID, if any.
func ConnID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(connIDKey{}).(string)
	return id, ok
}
