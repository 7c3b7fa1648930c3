package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rzbill/pricerelay/internal/broadcast"
	"github.com/rzbill/pricerelay/internal/runtime"
	"github.com/rzbill/pricerelay/pkg/log"
)

// StreamController serves live updates over SSE and WebSocket.
type StreamController struct {
	rt     *runtime.Runtime
	logger log.Logger
}

// NewStreamController creates a new stream controller.
func NewStreamController(rt *runtime.Runtime, logger log.Logger) *StreamController {
	return &StreamController{rt: rt, logger: logger}
}

// RegisterRoutes registers /sse and /ws.
func (c *StreamController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/sse", c.handleSSE)
	mux.HandleFunc("/ws", c.handleWS)
}

func (c *StreamController) pingInterval() time.Duration {
	return time.Duration(c.rt.Config().HTTP.PingIntervalMs) * time.Millisecond
}

// subscribe registers a hub subscriber for the request, writing the error
// response itself on failure. Query params: filter, limit.
func (c *StreamController) subscribe(w http.ResponseWriter, r *http.Request) (*broadcast.Subscription, int, bool) {
	filter := r.URL.Query().Get("filter")
	if len(filter) > broadcast.MaxFilterLen {
		writeError(w, http.StatusBadRequest, "Filter too long")
		return nil, 0, false
	}
	limit := parseLimit(r.URL.Query().Get("limit"))
	sub, err := c.rt.Hub().Subscribe(broadcast.SubscribeOptions{Filter: filter})
	if err != nil {
		if errors.Is(err, broadcast.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "Shutting down")
			return nil, 0, false
		}
		writeError(w, http.StatusBadRequest, "Invalid filter")
		return nil, 0, false
	}
	return sub, limit, true
}

// handleSSE streams every update published after the client connects.
// Query params: filter (CEL over `json`), limit.
func (c *StreamController) handleSSE(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	sub, limit, ok := c.subscribe(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sink := sseSink{w: w, r: r}
	if err := sink.Retry(c.rt.Config().HTTP.SSERetryMs); err != nil {
		c.rt.Hub().Unsubscribe(sub)
		return
	}
	_ = sink.Flush()

	logger := c.logger.With(log.Uint64("sub", sub.ID()), log.Str("transport", "sse"))
	logger.Debug("client connected", log.Str("remote", r.RemoteAddr))
	err := c.rt.Hub().Serve(sub, sink, broadcast.ServeOptions{KeepAlive: c.pingInterval(), Limit: limit})
	if err != nil {
		logger.Debug("client dropped", log.Err(err))
		return
	}
	logger.Debug("client disconnected")
}

// handleWS mirrors /sse over a WebSocket: one JSON text frame per update.
func (c *StreamController) handleWS(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	sub, limit, ok := c.subscribe(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		c.rt.Hub().Unsubscribe(sub)
		return
	}

	ping := c.pingInterval()
	sink, cancel := newWSSink(r.Context(), conn, ping)
	defer cancel()

	logger := c.logger.With(log.Uint64("sub", sub.ID()), log.Str("transport", "ws"))
	logger.Debug("client connected", log.Str("remote", r.RemoteAddr))
	err = c.rt.Hub().Serve(sub, sink, broadcast.ServeOptions{KeepAlive: ping, Limit: limit})
	if err != nil {
		logger.Debug("client dropped", log.Err(err))
		_ = conn.Close()
		return
	}
	sink.close(websocket.CloseNormalClosure, "")
	logger.Debug("client disconnected")
}
