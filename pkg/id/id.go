package id

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ID identifies one broadcast event.
type ID struct {
	Ms  int64
	Seq uint64
}

// String renders the id as "<ms>-<seq>".
func (i ID) String() string {
	return strconv.FormatInt(i.Ms, 10) + "-" + strconv.FormatUint(i.Seq, 10)
}

// Time returns the millisecond timestamp component.
func (i ID) Time() time.Time { return time.UnixMilli(i.Ms) }

// Parse reverses String.
func Parse(s string) (ID, error) {
	msPart, seqPart, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return ID{}, fmt.Errorf("id: malformed %q", s)
	}
	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("id: malformed %q: %w", s, err)
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("id: malformed %q: %w", s, err)
	}
	return ID{Ms: ms, Seq: seq}, nil
}

// Generator produces monotonically increasing IDs per process.
type Generator struct {
	mu       sync.Mutex
	lastMs   int64
	sequence uint64
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// NowMs returns current time in milliseconds since Unix epoch.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new ID. If the clock goes backwards it stays on the last seen
// millisecond and keeps counting.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms <= g.lastMs {
		ms = g.lastMs
		g.sequence++
	} else {
		g.sequence = 0
	}
	g.lastMs = ms
	return ID{Ms: ms, Seq: g.sequence}
}
