package snapshot

import (
	"context"
	"errors"

	"github.com/rzbill/pricerelay/internal/record"
	pebblestore "github.com/rzbill/pricerelay/internal/storage/pebble"
)

// pebbleKey is the only key the snapshot occupies.
var pebbleKey = []byte("snapshot/latest")

// PebbleStore keeps the snapshot under one Pebble key. A committed batch is
// atomic, so readers never see a partial value.
type PebbleStore struct {
	db *pebblestore.DB
}

var _ Store = (*PebbleStore)(nil)

// NewPebbleStore wraps an open DB. Close closes the DB.
func NewPebbleStore(db *pebblestore.DB) *PebbleStore { return &PebbleStore{db: db} }

func (s *PebbleStore) WriteLatest(_ context.Context, rec record.Record) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	if err := s.db.Set(pebbleKey, b); err != nil {
		return &StoreError{Op: "write", Err: err}
	}
	return nil
}

func (s *PebbleStore) ReadCurrent(_ context.Context) ([]byte, error) {
	b, err := s.db.Get(pebbleKey)
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "read", Err: err}
	}
	return b, nil
}

func (s *PebbleStore) Ping(_ context.Context) error {
	if err := s.db.Ping(); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }
