package runtime

import (
	"sync/atomic"
	"time"
)

// StorageMetrics counts Pebble reads and writes. It satisfies
// pebblestore.MetricsHook.
type StorageMetrics struct {
	writes      atomic.Uint64
	writeBytes  atomic.Uint64
	reads       atomic.Uint64
	lastWriteNs atomic.Int64
	maxWriteNs  atomic.Int64
}

// StorageStats is a point-in-time copy of StorageMetrics.
type StorageStats struct {
	Writes      uint64 `json:"writes"`
	WriteBytes  uint64 `json:"write_bytes"`
	Reads       uint64 `json:"reads"`
	LastWriteUs int64  `json:"last_write_us"`
	MaxWriteUs  int64  `json:"max_write_us"`
}

func (m *StorageMetrics) ObserveWrite(elapsed time.Duration, bytes int) {
	m.writes.Add(1)
	m.writeBytes.Add(uint64(bytes))
	ns := elapsed.Nanoseconds()
	m.lastWriteNs.Store(ns)
	for {
		cur := m.maxWriteNs.Load()
		if ns <= cur || m.maxWriteNs.CompareAndSwap(cur, ns) {
			return
		}
	}
}

func (m *StorageMetrics) ObserveRead(time.Duration, int) { m.reads.Add(1) }

// Snapshot copies the counters.
func (m *StorageMetrics) Snapshot() StorageStats {
	return StorageStats{
		Writes:      m.writes.Load(),
		WriteBytes:  m.writeBytes.Load(),
		Reads:       m.reads.Load(),
		LastWriteUs: m.lastWriteNs.Load() / 1e3,
		MaxWriteUs:  m.maxWriteNs.Load() / 1e3,
	}
}
