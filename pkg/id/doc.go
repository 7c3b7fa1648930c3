// Package id generates event identifiers for server-push streams.
//
// An ID is a (millisecond timestamp, sequence) pair rendered as
// "<ms>-<seq>". IDs from one Generator are strictly increasing even when the
// wall clock steps backwards. Parse recovers the timestamp from an id a
// client has received.
//
// Usage
//
//	g := id.NewGenerator()
//	evID := g.Next()
//	s := evID.String() // "1718000000000-0"
//	back, _ := id.Parse(s)
package id
