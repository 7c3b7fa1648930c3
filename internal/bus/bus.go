package bus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed reports a read or subscribe on a transport that has gone away.
var ErrClosed = errors.New("bus: connection closed")

// Message is one payload received on a subject.
type Message struct {
	Subject string
	Data    []byte
}

// Subscription yields messages for one subject in arrival order. It is owned
// by a single reader.
type Subscription interface {
	// Next blocks until a message arrives, ctx ends, or the transport fails.
	Next(ctx context.Context) (Message, error)
	Close() error
}

// Bus is a connected transport.
type Bus interface {
	Subscribe(ctx context.Context, subject string) (Subscription, error)
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverNATS   = "nats"
	DriverRedis  = "redis"
	DriverKafka  = "kafka"
	DriverMemory = "memory"
)

// Options selects and configures a driver.
type Options struct {
	Driver string
	// URL is the NATS server URL.
	URL string
	// RedisAddr is host:port for the redis driver.
	RedisAddr string
	// KafkaBrokers lists host:port for the kafka driver.
	KafkaBrokers []string
	// Name identifies this client to the server where supported.
	Name string
	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
}

// Open connects the configured driver.
func Open(ctx context.Context, opts Options) (Bus, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.Name == "" {
		opts.Name = "pricerelay"
	}
	switch opts.Driver {
	case DriverNATS, "":
		return openNATS(opts)
	case DriverRedis:
		return openRedis(ctx, opts)
	case DriverKafka:
		return openKafka(opts)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("bus: unknown driver %q", opts.Driver)
	}
}

// withDeadline gives ctx a deadline when it has none; some clients require one.
func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
