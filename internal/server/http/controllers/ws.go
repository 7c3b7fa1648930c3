package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rzbill/pricerelay/internal/broadcast"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Same open policy as the CORS headers.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsSink writes each event as one text frame. Only the Serve goroutine
// writes data frames.
type wsSink struct {
	conn *websocket.Conn
	ctx  context.Context
}

// newWSSink starts the read pump that answers pings and notices close frames;
// the returned context ends when the peer goes away.
func newWSSink(parent context.Context, conn *websocket.Conn, pingEvery time.Duration) (*wsSink, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	conn.SetReadLimit(512)
	if pingEvery > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(2 * pingEvery))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * pingEvery))
		})
	}
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return &wsSink{conn: conn, ctx: ctx}, cancel
}

func (s *wsSink) Send(ev broadcast.Event) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, ev.Data)
}

func (s *wsSink) KeepAlive() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (s *wsSink) Flush() error { return nil }

func (s *wsSink) Context() context.Context { return s.ctx }

func (s *wsSink) close(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = s.conn.Close()
}
