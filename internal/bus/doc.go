// Package bus adapts publish/subscribe transports to one shape: subscribe to a
// subject and pull an ordered sequence of byte messages from it.
//
// Drivers: nats (default), redis (PUBLISH/SUBSCRIBE), kafka (topic = subject,
// partition 0, newest offset) and memory (in-process).
//
// Example:
//
//	b, err := bus.Open(ctx, bus.Options{Driver: "nats", URL: "nats://127.0.0.1:4222"})
//	if err != nil { /* handle */ }
//	defer b.Close()
//	sub, err := b.Subscribe(ctx, "price")
//	for {
//	    msg, err := sub.Next(ctx)
//	    if err != nil { break }
//	    _ = msg.Data
//	}
package bus
