// Package counter implements a Handler that tallies query commands by
// their leading keyword (select, insert, update, ...) and reports counts
// both as Prometheus metrics and through an in-memory snapshot.
package counter

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/henrypark/dbproxy/packet"
)

var queryCommandTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dbproxy_query_command_total",
		Help: "Number of queries observed, by leading SQL keyword",
	},
	[]string{"command"},
)

func init() {
	prometheus.MustRegister(queryCommandTotal)
}

// Handler counts request-direction queries by command keyword. Response
// packets are passed through unchanged.
type Handler struct {
	mu    sync.Mutex
	count map[string]uint64
}

// New returns an empty counter Handler.
func New() *Handler {
	return &Handler{count: make(map[string]uint64)}
}

// Snapshot returns a copy of the current per-command counts.
func (h *Handler) Snapshot() map[string]uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]uint64, len(h.count))
	for k, v := range h.count {
		out[k] = v
	}
	return out
}

func (h *Handler) HandleRequest(_ context.Context, p *packet.Packet) (*packet.Packet, error) {
	sql, err := p.Query()
	if err != nil {
		if err != packet.ErrNotAQuery {
			log.Printf("counter: %v", err)
		}
		return p, nil
	}

	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return p, nil
	}
	command := strings.ToLower(fields[0])

	h.mu.Lock()
	h.count[command]++
	h.mu.Unlock()

	queryCommandTotal.WithLabelValues(command).Inc()
	log.Printf("counter: %s", sql)

	return p, nil
}

func (h *Handler) HandleResponse(_ context.Context, p *packet.Packet) (*packet.Packet, error) {
	return p, nil
}
