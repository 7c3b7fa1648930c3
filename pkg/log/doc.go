// Package log provides the relay's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Records flow through a slog.Handler
// bridge into a Formatter and one or more Outputs, so libraries that speak
// slog and code written against this facade produce identical lines.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("relay"), log.Str("subject", "price"))
//	l.Info("subscribed")
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (level, text or json
// format, stderr/stdout/null output).
//
// # Interop
//
// RedirectStdLog routes the standard library logger (used by some drivers)
// through a Logger at info level.
package log
