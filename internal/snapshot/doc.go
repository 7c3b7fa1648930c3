// Package snapshot holds the single latest normalized record in durable
// storage. Every WriteLatest replaces the previous value completely; readers
// get the persisted bytes verbatim.
//
// Backends: Pebble (a local key-value store under the data directory),
// Redis (one string key) and SQLite (one upserted row).
//
// Example:
//
//	st := snapshot.NewPebbleStore(db)
//	_ = st.WriteLatest(ctx, rec)
//	b, err := st.ReadCurrent(ctx)
//	if errors.Is(err, snapshot.ErrNotFound) { /* nothing published yet */ }
package snapshot
