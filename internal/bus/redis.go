package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisBus struct {
	client *redis.Client
}

func openRedis(ctx context.Context, opts Options) (Bus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.RedisAddr,
		ClientName:  opts.Name,
		DialTimeout: opts.DialTimeout,
	})
	pctx, cancel := withDeadline(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("bus: redis connect %s: %w", opts.RedisAddr, err)
	}
	return NewRedis(client), nil
}

// NewRedis wraps an existing client. Close closes the client.
func NewRedis(client *redis.Client) Bus { return &redisBus{client: client} }

// Subscribe waits for the server's subscribe confirmation.
func (b *redisBus) Subscribe(ctx context.Context, subject string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, subject)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, mapRedisErr(err)
	}
	return &redisSub{ps: ps}, nil
}

func (b *redisBus) Publish(ctx context.Context, subject string, data []byte) error {
	return mapRedisErr(b.client.Publish(ctx, subject, data).Err())
}

func (b *redisBus) Close() error { return b.client.Close() }

type redisSub struct {
	ps *redis.PubSub
}

func (s *redisSub) Next(ctx context.Context) (Message, error) {
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, ctxErr
		}
		return Message{}, mapRedisErr(err)
	}
	return Message{Subject: msg.Channel, Data: []byte(msg.Payload)}, nil
}

func (s *redisSub) Close() error {
	if err := s.ps.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

func mapRedisErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}
