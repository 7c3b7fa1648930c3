// Package pebblestore provides a thin wrapper around Pebble with an fsync
// policy, single-key point operations and minimal metrics hooks. It backs the
// durable snapshot.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data/store",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.Set([]byte("snapshot/latest"), []byte(`{"price":1}`))
//	v, err := db.Get([]byte("snapshot/latest"))
package pebblestore
