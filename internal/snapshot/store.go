package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rzbill/pricerelay/internal/record"
)

var (
	// ErrNotFound means no snapshot has ever been written to this storage.
	ErrNotFound = errors.New("snapshot: not found")
	// ErrStore matches every backend failure.
	ErrStore = errors.New("snapshot: store failure")
)

// Store is the durable single-record snapshot.
type Store interface {
	// WriteLatest serializes rec canonically and replaces the snapshot.
	WriteLatest(ctx context.Context, rec record.Record) error
	// ReadCurrent returns the persisted bytes or ErrNotFound.
	ReadCurrent(ctx context.Context) ([]byte, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// StoreError wraps a backend failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("snapshot: %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

func encode(rec record.Record) ([]byte, error) {
	b, err := record.Marshal(rec)
	if err != nil {
		return nil, &StoreError{Op: "encode", Err: err}
	}
	return b, nil
}
