// Package broadcast fans normalized records out to every connected streaming
// subscriber.
//
// Publish snapshots the subscriber set and enqueues the event on each
// subscriber's bounded buffer without holding the hub lock. A subscriber whose
// buffer is full, or whose sink fails to write, is removed; others are not
// affected. Each subscriber receives events in publish order. There is no
// replay of events published before Subscribe.
//
// Transports implement Sink and hand it to Serve:
//
//	sub, err := hub.Subscribe(broadcast.SubscribeOptions{Filter: `json.symbol == "X"`})
//	if err != nil { /* bad filter */ }
//	err = hub.Serve(sub, mySink, broadcast.ServeOptions{KeepAlive: 15 * time.Second})
package broadcast
