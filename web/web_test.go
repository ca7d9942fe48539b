package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/henrypark/dbproxy/broker"
	"github.com/henrypark/dbproxy/proxy"
)

func TestHandleSSEStreamsPublishedEvent(t *testing.T) {
	b := broker.New(4)
	s := New(b, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.Handler().ServeHTTP(rec, req)
		close(done)
	}()

	// Give handleSSE time to subscribe before publishing.
	time.Sleep(10 * time.Millisecond)
	b.Publish(proxy.Event{ID: "1", Op: proxy.OpQuery, Query: "SELECT 1"})
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleSSE did not return after context cancellation")
	}

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	found := false
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), "SELECT 1") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected SSE body to contain published event, got: %s", rec.Body.String())
	}
}

func TestHandleExplainWithoutClientReturnsUnavailable(t *testing.T) {
	s := New(broker.New(1), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/explain", strings.NewReader(`{"query":"select 1"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
