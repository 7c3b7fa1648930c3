package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/rzbill/pricerelay/internal/bus"
	cfgpkg "github.com/rzbill/pricerelay/internal/config"
)

func fakeRelay(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/price", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price":100}`))
	})
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if f := r.URL.Query().Get("filter"); f != "" && f != "json.price > 1" {
			http.Error(w, `{"error":"Invalid filter"}`, http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "retry: 3000\n\n")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "id: 1-0\ndata: {\"price\":1}\n\n")
		fmt.Fprint(w, "id: 1-1\ndata: {\"price\":2}\n\n")
		fmt.Fprint(w, "id: 1-2\ndata: {\"price\":3}\n\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSnapshotPrintsBody(t *testing.T) {
	srv := fakeRelay(t)
	cmd := NewSnapshotCommand(func() string { return srv.URL })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(buf.String()) != `{"price":100}` {
		t.Fatalf("output: %q", buf.String())
	}
}

func TestSnapshotReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Could not read price file"}`))
	}))
	defer srv.Close()

	cmd := NewSnapshotCommand(func() string { return srv.URL })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "Could not read price file") {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestTailLimit(t *testing.T) {
	srv := fakeRelay(t)
	cmd := NewTailCommand(func() string { return srv.URL })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--limit", "2", "--raw"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[0] != `{"price":1}` || lines[1] != `{"price":2}` {
		t.Fatalf("output: %q", lines)
	}
}

func TestTailDecodedOutput(t *testing.T) {
	srv := fakeRelay(t)
	cmd := NewTailCommand(func() string { return srv.URL })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--limit", "1", "--filter", "json.price > 1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), `"id":"1-0"`) || !strings.Contains(buf.String(), `"payload_json":{"price":1}`) ||
		!strings.Contains(buf.String(), `"time":"1970-01-01T00:00:00.001Z"`) {
		t.Fatalf("output: %s", buf.String())
	}
}

func TestTailRejectedFilter(t *testing.T) {
	srv := fakeRelay(t)
	cmd := NewTailCommand(func() string { return srv.URL })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--filter", "nope("})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected 400 error, got %v", err)
	}
}

func TestReadEventsMultilineData(t *testing.T) {
	in := "retry: 1000\n\nid: a\ndata: line1\ndata: line2\n\n"
	var got []sseEvent
	err := readEvents(strings.NewReader(in), func(ev sseEvent) error {
		got = append(got, ev)
		return nil
	})
	if err == nil {
		t.Fatal("expected unexpected EOF at end of stream")
	}
	if len(got) != 1 || got[0].ID != "a" || got[0].Data != "line1\nline2" {
		t.Fatalf("events: %+v", got)
	}
}

func TestPublishToRedisBus(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := cfgpkg.Default()
	cfg.Bus.Driver = cfgpkg.BusRedis
	cfg.Bus.RedisAddr = mr.Addr()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := bus.Open(ctx, bus.Options{Driver: bus.DriverRedis, RedisAddr: mr.Addr()})
	if err != nil {
		t.Fatalf("open bus: %v", err)
	}
	defer b.Close()
	sub, err := b.Subscribe(ctx, "price")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	cmd := NewPublishCommand(func() (cfgpkg.Config, error) { return cfg, nil })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--data", `{"price":9}`})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), "published 11 bytes to price") {
		t.Fatalf("output: %s", buf.String())
	}

	msg, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(msg.Data) != `{"price":9}` {
		t.Fatalf("payload: %s", msg.Data)
	}
}

func TestPublishRejectsInvalidJSON(t *testing.T) {
	cmd := NewPublishCommand(func() (cfgpkg.Config, error) { return cfgpkg.Default(), nil })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("not json"))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "not valid JSON") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
