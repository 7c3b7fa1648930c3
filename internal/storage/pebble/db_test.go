package pebblestore

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type testMetrics struct {
	mu    sync.Mutex
	wrote int
	read  int
}

func (m *testMetrics) ObserveWrite(d time.Duration, bytes int) {
	m.mu.Lock()
	m.wrote += bytes
	m.mu.Unlock()
}

func (m *testMetrics) ObserveRead(d time.Duration, bytes int) {
	m.mu.Lock()
	m.read += bytes
	m.mu.Unlock()
}

func newTestDB(t *testing.T, mode FsyncMode) (*DB, *testMetrics) {
	t.Helper()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       t.TempDir(),
		Fsync:         mode,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestSetGetOverwrite(t *testing.T) {
	db, metrics := newTestDB(t, FsyncModeInterval)

	key := []byte("k1")
	if _, err := db.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first write, got %v", err)
	}
	if err := db.Set(key, []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.Set(key, []byte("v2")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("got %q want %q", got, "v2")
	}
	if metrics.wrote != 4 || metrics.read != 2 {
		t.Fatalf("metrics wrote=%d read=%d", metrics.wrote, metrics.read)
	}
}

func TestReopenKeepsValue(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Options{DataDir: dir, Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Set([]byte("k"), []byte("durable")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	db, err = Open(Options{DataDir: dir, Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	got, err := db.Get([]byte("k"))
	if err != nil || string(got) != "durable" {
		t.Fatalf("after reopen got %q err=%v", got, err)
	}
}

func TestPing(t *testing.T) {
	db, _ := newTestDB(t, FsyncModeNever)
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	var nilDB *DB
	if err := nilDB.Ping(); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestParseFsyncMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FsyncMode
		wantErr bool
	}{
		{"always", FsyncModeAlways, false},
		{"", FsyncModeAlways, false},
		{"interval", FsyncModeInterval, false},
		{"never", FsyncModeNever, false},
		{"sometimes", FsyncModeUnspecified, true},
	}
	for _, tt := range tests {
		got, err := ParseFsyncMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseFsyncMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}
