package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rzbill/pricerelay/internal/bus"
	"github.com/rzbill/pricerelay/internal/record"
	"github.com/rzbill/pricerelay/pkg/log"
)

// State of the loop.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateSubscribing
	StateRunning
	StateDecoding
	StatePersisting
	StateBroadcasting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateSubscribing:
		return "subscribing"
	case StateRunning:
		return "running"
	case StateDecoding:
		return "decoding"
	case StatePersisting:
		return "persisting"
	case StateBroadcasting:
		return "broadcasting"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SubscriptionError means the bus refused or failed the subscription.
type SubscriptionError struct {
	Subject string
	Err     error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("relay: subscribe %q: %v", e.Subject, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// TransportError means reading from an established subscription failed.
type TransportError struct {
	Subject string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("relay: read %q: %v", e.Subject, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Store is the part of the snapshot store the loop writes to.
type Store interface {
	WriteLatest(ctx context.Context, rec record.Record) error
}

// Broadcaster fans a record out to live subscribers.
type Broadcaster interface {
	Publish(rec record.Record) error
}

// Options wires a Loop.
type Options struct {
	Bus     bus.Bus
	Subject string
	Store   Store
	Hub     Broadcaster
	// Enrich returns the geolocation attached to every record. It is called
	// once at startup and must not fail; nil means unknown coordinates.
	Enrich func(ctx context.Context) record.Geo
	// BroadcastOnPersistFailure keeps live delivery going while the store is down.
	BroadcastOnPersistFailure bool
	Logger                    log.Logger
}

// Stats are cumulative counters since the loop was created.
type Stats struct {
	State        string `json:"state"`
	Received     uint64 `json:"received"`
	Relayed      uint64 `json:"relayed"`
	DecodeErrors uint64 `json:"decode_errors"`
	StoreErrors  uint64 `json:"store_errors"`
}

// Loop consumes one subject. Run may be called once.
type Loop struct {
	opts   Options
	logger log.Logger

	state        atomic.Int32
	started      atomic.Bool
	received     atomic.Uint64
	relayed      atomic.Uint64
	decodeErrors atomic.Uint64
	storeErrors  atomic.Uint64
}

// New validates opts and returns an idle loop.
func New(opts Options) (*Loop, error) {
	if opts.Bus == nil {
		return nil, errors.New("relay: bus is required")
	}
	if opts.Store == nil {
		return nil, errors.New("relay: store is required")
	}
	if opts.Hub == nil {
		return nil, errors.New("relay: hub is required")
	}
	if opts.Subject == "" {
		opts.Subject = "price"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Loop{
		opts:   opts,
		logger: logger.WithComponent("relay").With(log.Str("subject", opts.Subject)),
	}, nil
}

// State returns the current state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	return Stats{
		State:        l.State().String(),
		Received:     l.received.Load(),
		Relayed:      l.relayed.Load(),
		DecodeErrors: l.decodeErrors.Load(),
		StoreErrors:  l.storeErrors.Load(),
	}
}

func (l *Loop) set(s State) { l.state.Store(int32(s)) }

// Run blocks until ctx is cancelled (returns nil) or the bus fails
// (returns *SubscriptionError or *TransportError).
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("relay: already started")
	}
	defer l.set(StateStopped)

	l.set(StateStarting)
	var geo record.Geo
	if l.opts.Enrich != nil {
		geo = l.opts.Enrich(ctx)
	}
	dec := record.NewDecoder(geo)
	l.logger.Debug("decoder ready", log.Bool("geo_known", geo.Known()))

	l.set(StateSubscribing)
	sub, err := l.opts.Bus.Subscribe(ctx, l.opts.Subject)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Error("subscribe failed", log.Err(err))
		return &SubscriptionError{Subject: l.opts.Subject, Err: err}
	}
	defer sub.Close()
	l.logger.Info("subscribed")

	for {
		l.set(StateRunning)
		msg, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("relay stopping")
				return nil
			}
			l.logger.Error("bus read failed", log.Err(err))
			return &TransportError{Subject: l.opts.Subject, Err: err}
		}
		l.handle(ctx, dec, msg)
	}
}

func (l *Loop) handle(ctx context.Context, dec *record.Decoder, msg bus.Message) {
	l.received.Add(1)

	l.set(StateDecoding)
	rec, err := dec.Decode(msg.Data)
	if err != nil {
		l.decodeErrors.Add(1)
		l.logger.Warn("dropping malformed message", log.Err(err), log.Int("bytes", len(msg.Data)))
		return
	}

	l.set(StatePersisting)
	if err := l.opts.Store.WriteLatest(ctx, rec.Clone()); err != nil {
		l.storeErrors.Add(1)
		if !l.opts.BroadcastOnPersistFailure {
			l.logger.Error("persist failed, dropping update", log.Err(err))
			return
		}
		l.logger.Error("persist failed, broadcasting anyway", log.Err(err))
	}

	l.set(StateBroadcasting)
	if err := l.opts.Hub.Publish(rec); err != nil {
		l.logger.Warn("broadcast failed", log.Err(err))
		return
	}
	l.relayed.Add(1)
	l.logger.Debug("relayed update")
}
