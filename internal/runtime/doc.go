// Package runtime wires storage, the broadcast hub, the message bus and the
// relay loop into a single-node pricerelay instance. It exposes Open/Close,
// a health check and the collaborators used by the HTTP server.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg, Logger: logger})
//	defer rt.Close()
//	loop, _ := rt.NewLoop(nil)
//	_ = loop.Run(ctx)
package runtime
