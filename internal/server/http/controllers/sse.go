package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rzbill/pricerelay/internal/broadcast"
)

// sseSink writes hub events as Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
	r *http.Request
}

// Send writes one event. Event data is single-line JSON.
func (s sseSink) Send(ev broadcast.Event) error {
	_, err := fmt.Fprintf(s.w, "id: %s\ndata: %s\n\n", ev.ID, ev.Data)
	return err
}

// KeepAlive writes an SSE comment so idle proxies keep the stream open.
func (s sseSink) KeepAlive() error {
	_, err := s.w.Write([]byte(": ping\n\n"))
	return err
}

// Retry tells the client how long to wait before reconnecting.
func (s sseSink) Retry(ms int) error {
	_, err := fmt.Fprintf(s.w, "retry: %d\n\n", ms)
	return err
}

// Context returns the request context for cancellation.
func (s sseSink) Context() context.Context {
	return s.r.Context()
}

func (s sseSink) Flush() error {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
