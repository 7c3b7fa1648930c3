package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rzbill/pricerelay/internal/record"
	pebblestore "github.com/rzbill/pricerelay/internal/storage/pebble"
)

func newPebbleStore(t *testing.T) *PebbleStore {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	st := NewPebbleStore(db)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	st := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "pricerelay:snapshot")
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func backends(t *testing.T) map[string]Store {
	rs, _ := newRedisStore(t)
	return map[string]Store{
		"pebble": newPebbleStore(t),
		"redis":  rs,
		"sqlite": newSQLiteStore(t),
	}
}

func TestReadBeforeWriteIsNotFound(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := st.ReadCurrent(context.Background()); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestWriteLatestSupersedes(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first := record.Record{"price": json.Number("100"), "stale": true}
			second := record.Record{"price": json.Number("101")}
			if err := st.WriteLatest(ctx, first); err != nil {
				t.Fatalf("write first: %v", err)
			}
			if err := st.WriteLatest(ctx, second); err != nil {
				t.Fatalf("write second: %v", err)
			}
			got, err := st.ReadCurrent(ctx)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			want, _ := record.Marshal(second)
			if string(got) != string(want) {
				t.Fatalf("got %s want %s (no merge expected)", got, want)
			}
		})
	}
}

func TestConcurrentReadsSeeWholeValues(t *testing.T) {
	ctx := context.Background()
	st := newPebbleStore(t)
	if err := st.WriteLatest(ctx, record.Record{"n": 0}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 4)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				b, err := st.ReadCurrent(ctx)
				if err != nil {
					errs <- err
					return
				}
				var m map[string]any
				if err := json.Unmarshal(b, &m); err != nil {
					errs <- fmt.Errorf("partial snapshot %q: %w", b, err)
					return
				}
			}
		}()
	}
	for i := 1; i <= 200; i++ {
		if err := st.WriteLatest(ctx, record.Record{"n": i, "pad": string(make([]byte, i))}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestRedisReadErrorIsStoreError(t *testing.T) {
	st, mr := newRedisStore(t)
	mr.Close()
	_, err := st.ReadCurrent(context.Background())
	if !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("transport failure must not look like not-found")
	}
	if err := st.WriteLatest(context.Background(), record.Record{"a": 1}); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore on write, got %v", err)
	}
}

func TestUnencodableRecord(t *testing.T) {
	st := newPebbleStore(t)
	err := st.WriteLatest(context.Background(), record.Record{"bad": make(chan int)})
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "encode" {
		t.Fatalf("expected encode StoreError, got %v", err)
	}
}

func TestPing(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.Ping(context.Background()); err != nil {
				t.Fatalf("ping: %v", err)
			}
		})
	}
}

func TestSQLiteSnapshotSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	st, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.WriteLatest(context.Background(), record.Record{"price": json.Number("5")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = st.Close()

	st, err = OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	b, err := st.ReadCurrent(context.Background())
	if err != nil || string(b) != `{"price":5}` {
		t.Fatalf("after reopen: %s, %v", b, err)
	}
}
