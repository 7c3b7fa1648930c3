package bus

import (
	"context"
	"sync"
)

// Memory is an in-process bus. Publish blocks until every current subscriber
// has room, so no message is lost between a publisher and a live subscriber.
type Memory struct {
	mu     sync.Mutex
	subs   map[string][]*memorySub
	closed bool
}

// NewMemory returns an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]*memorySub)}
}

func (m *Memory) Subscribe(_ context.Context, subject string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	s := &memorySub{
		bus:     m,
		subject: subject,
		ch:      make(chan Message, 256),
		done:    make(chan struct{}),
	}
	m.subs[subject] = append(m.subs[subject], s)
	return s, nil
}

func (m *Memory) Publish(ctx context.Context, subject string, data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	targets := append([]*memorySub(nil), m.subs[subject]...)
	m.mu.Unlock()

	msg := Message{Subject: subject, Data: append([]byte(nil), data...)}
	for _, s := range targets {
		select {
		case s.ch <- msg:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close ends every subscription; pending and future Next calls return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := m.subs
	m.subs = make(map[string][]*memorySub)
	m.mu.Unlock()
	for _, list := range subs {
		for _, s := range list {
			s.stop()
		}
	}
	return nil
}

func (m *Memory) remove(s *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[s.subject]
	for i, e := range list {
		if e == s {
			m.subs[s.subject] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

type memorySub struct {
	bus     *Memory
	subject string
	ch      chan Message
	done    chan struct{}
	once    sync.Once
}

func (s *memorySub) Next(ctx context.Context) (Message, error) {
	select {
	case msg := <-s.ch:
		return msg, nil
	case <-s.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (s *memorySub) Close() error {
	s.stop()
	s.bus.remove(s)
	return nil
}

func (s *memorySub) stop() { s.once.Do(func() { close(s.done) }) }
