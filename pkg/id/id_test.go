package id

import (
	"testing"
	"time"
)

func restoreClock(t *testing.T) {
	t.Cleanup(func() { NowMs = func() int64 { return time.Now().UnixMilli() } })
}

func before(a, b ID) bool {
	return a.Ms < b.Ms || (a.Ms == b.Ms && a.Seq < b.Seq)
}

func TestOrderingMonotonic(t *testing.T) {
	restoreClock(t)
	g := NewGenerator()
	NowMs = func() int64 { return 1000 }

	a := g.Next()
	b := g.Next()
	if !before(a, b) {
		t.Fatalf("expected a<b, got %s %s", a, b)
	}
}

func TestClockRegressionGuard(t *testing.T) {
	restoreClock(t)
	g := NewGenerator()
	now := int64(1000)
	NowMs = func() int64 { return now }

	a := g.Next()
	now = 900
	b := g.Next()
	if !before(a, b) {
		t.Fatalf("expected b>a despite clock regression")
	}
	if b.Ms != 1000 {
		t.Fatalf("expected pinned ms 1000, got %d", b.Ms)
	}
}

func TestSequenceResetsOnNewMillisecond(t *testing.T) {
	restoreClock(t)
	g := NewGenerator()
	now := int64(5)
	NowMs = func() int64 { return now }
	_ = g.Next()
	_ = g.Next()
	now = 6
	if got := g.Next(); got.Seq != 0 || got.Ms != 6 {
		t.Fatalf("expected 6-0, got %s", got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{in: "1718000000000-3", want: ID{Ms: 1718000000000, Seq: 3}},
		{in: " 1-0 ", want: ID{Ms: 1}},
		{in: "nope", wantErr: true},
		{in: "1-x", wantErr: true},
		{in: "x-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) err=%v", tt.in, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("Parse(%q)=%v want %v", tt.in, got, tt.want)
			}
		})
	}
}
