package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/pricerelay/internal/record"
	"github.com/rzbill/pricerelay/pkg/id"
	logpkg "github.com/rzbill/pricerelay/pkg/log"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("broadcast: hub closed")

// DefaultBuffer is the per-subscriber queue length when none is configured.
const DefaultBuffer = 64

// Event is one published record in wire form.
type Event struct {
	ID   string
	Data []byte
}

// Options configures a Hub.
type Options struct {
	// Buffer is the default per-subscriber queue length.
	Buffer int
	Logger logpkg.Logger
}

// SubscribeOptions configures one subscriber.
type SubscribeOptions struct {
	// Filter is an optional CEL expression over the record (variable json).
	Filter string
	// Buffer overrides Options.Buffer when positive.
	Buffer int
}

// Stats is a point-in-time view of hub counters.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Evicted     uint64 `json:"evicted"`
}

// Hub tracks live subscribers and delivers events to them.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	buffer int
	ids    *id.Generator
	logger logpkg.Logger

	published atomic.Uint64
	delivered atomic.Uint64
	evicted   atomic.Uint64
}

// New returns an empty hub.
func New(opts Options) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: opts.Buffer,
		ids:    id.NewGenerator(),
		logger: opts.Logger,
	}
}

// Subscription is one registered sink. Hold it for the connection lifetime.
type Subscription struct {
	id     uint64
	events chan Event
	done   chan struct{}
	once   sync.Once
	filter celFilter
}

// ID identifies the subscription within its hub.
func (s *Subscription) ID() uint64 { return s.id }

// Events yields published events in order.
func (s *Subscription) Events() <-chan Event { return s.events }

// Done is closed once the subscription is removed from the hub.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Subscribe registers a new subscriber. Only events published after it
// returns are delivered.
func (h *Hub) Subscribe(opts SubscribeOptions) (*Subscription, error) {
	f, err := newCELFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = h.buffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		events: make(chan Event, buf),
		done:   make(chan struct{}),
		filter: f,
	}
	h.subs[sub.id] = sub
	h.logger.Debug("subscriber added", logpkg.Uint64("sub", sub.id), logpkg.Int("subscribers", len(h.subs)))
	return sub, nil
}

// Unsubscribe removes sub. Calling it again, or after the hub evicted sub, is
// a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.once.Do(func() { close(sub.done) })
	h.mu.Lock()
	_, ok := h.subs[sub.id]
	delete(h.subs, sub.id)
	n := len(h.subs)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("subscriber removed", logpkg.Uint64("sub", sub.id), logpkg.Int("subscribers", n))
	}
}

// Publish delivers rec to every current subscriber whose filter accepts it.
// rec must not be mutated afterwards. A subscriber that cannot take the event
// immediately is evicted.
func (h *Hub) Publish(rec record.Record) error {
	data, err := record.Marshal(rec)
	if err != nil {
		return err
	}
	ev := Event{ID: h.ids.Next().String(), Data: data}
	h.published.Add(1)

	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var view filterView
	for _, s := range targets {
		select {
		case <-s.done:
			continue
		default:
		}
		if s.filter.enabled && !s.filter.Eval(view.get(data)) {
			continue
		}
		select {
		case s.events <- ev:
			h.delivered.Add(1)
		default:
			h.evicted.Add(1)
			h.logger.Warn("subscriber too slow; evicting", logpkg.Uint64("sub", s.id))
			h.Unsubscribe(s)
		}
	}
	return nil
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Subscribers: h.Count(),
		Published:   h.published.Load(),
		Delivered:   h.delivered.Load(),
		Evicted:     h.evicted.Load(),
	}
}

// Close removes every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()
	for _, s := range subs {
		s.once.Do(func() { close(s.done) })
	}
}

// Sink is a transport-side writer for one subscriber.
type Sink interface {
	Send(Event) error
	Flush() error
	Context() context.Context
}

// KeepAliver is implemented by sinks that can emit a transport keep-alive.
type KeepAliver interface {
	KeepAlive() error
}

// ServeOptions tunes Serve.
type ServeOptions struct {
	// KeepAlive is the idle interval between keep-alives; zero disables them.
	KeepAlive time.Duration
	// Limit ends Serve after that many events; zero means unlimited.
	Limit int
}

// Serve pumps sub's events into sink until the sink's context ends, the
// subscription is removed, the limit is reached, or a write fails. sub is always unsubscribed on
// return. A nil error means the client went away or the hub closed.
func (h *Hub) Serve(sub *Subscription, sink Sink, opts ServeOptions) error {
	defer h.Unsubscribe(sub)

	var tick <-chan time.Time
	ka, canKeepAlive := sink.(KeepAliver)
	if canKeepAlive && opts.KeepAlive > 0 {
		t := time.NewTicker(opts.KeepAlive)
		defer t.Stop()
		tick = t.C
	}

	ctx := sink.Context()
	sent := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.done:
			return nil
		case ev := <-sub.events:
			if err := sink.Send(ev); err != nil {
				return err
			}
			if err := sink.Flush(); err != nil {
				return err
			}
			sent++
			if opts.Limit > 0 && sent >= opts.Limit {
				return nil
			}
		case <-tick:
			if err := ka.KeepAlive(); err != nil {
				return err
			}
			if err := sink.Flush(); err != nil {
				return err
			}
		}
	}
}
