package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type natsBus struct {
	nc      *nats.Conn
	timeout time.Duration
}

func openNATS(opts Options) (*natsBus, error) {
	url := opts.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name(opts.Name), nats.Timeout(opts.DialTimeout))
	if err != nil {
		return nil, fmt.Errorf("bus: nats connect %s: %w", url, err)
	}
	return &natsBus{nc: nc, timeout: opts.DialTimeout}, nil
}

// Subscribe registers interest and round-trips to the server so that a
// rejected subscription surfaces here rather than on the first Next.
func (b *natsBus) Subscribe(ctx context.Context, subject string) (Subscription, error) {
	sub, err := b.nc.SubscribeSync(subject)
	if err != nil {
		return nil, mapNATSErr(err)
	}
	fctx, cancel := withDeadline(ctx, b.timeout)
	defer cancel()
	if err := b.nc.FlushWithContext(fctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, mapNATSErr(err)
	}
	if err := b.nc.LastError(); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return &natsSub{sub: sub}, nil
}

func (b *natsBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := b.nc.Publish(subject, data); err != nil {
		return mapNATSErr(err)
	}
	fctx, cancel := withDeadline(ctx, b.timeout)
	defer cancel()
	return mapNATSErr(b.nc.FlushWithContext(fctx))
}

func (b *natsBus) Close() error {
	b.nc.Close()
	return nil
}

type natsSub struct {
	sub *nats.Subscription
}

func (s *natsSub) Next(ctx context.Context) (Message, error) {
	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, ctxErr
		}
		return Message{}, mapNATSErr(err)
	}
	return Message{Subject: msg.Subject, Data: msg.Data}, nil
}

func (s *natsSub) Close() error {
	err := s.sub.Unsubscribe()
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
		return nil
	}
	return err
}

func mapNATSErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionDraining) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}
