// Package httpserver serves the latest price snapshot and live price streams
// over HTTP: GET /price, GET /sse (Server-Sent Events), GET /ws (WebSocket),
// plus /v1/healthz and /v1/stats.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
