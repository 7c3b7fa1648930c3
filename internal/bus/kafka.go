package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
)

type kafkaBus struct {
	brokers []string
	timeout time.Duration
	writer  *kafka.Writer
}

func openKafka(opts Options) (*kafkaBus, error) {
	if len(opts.KafkaBrokers) == 0 {
		return nil, errors.New("bus: kafka requires at least one broker")
	}
	return &kafkaBus{
		brokers: opts.KafkaBrokers,
		timeout: opts.DialTimeout,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(opts.KafkaBrokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}, nil
}

// Subscribe checks that the topic exists, then reads partition 0 from the
// newest offset. A single partition keeps arrival order total.
func (b *kafkaBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	dctx, cancel := withDeadline(ctx, b.timeout)
	defer cancel()
	conn, err := kafka.DialContext(dctx, "tcp", b.brokers[0])
	if err != nil {
		return nil, fmt.Errorf("bus: kafka dial %s: %w", b.brokers[0], err)
	}
	parts, err := conn.ReadPartitions(topic)
	_ = conn.Close()
	if err != nil {
		return nil, fmt.Errorf("bus: kafka topic %s: %w", topic, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("bus: kafka topic %s has no partitions", topic)
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		Topic:       topic,
		Partition:   0,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     200 * time.Millisecond,
	})
	return &kafkaSub{r: r}, nil
}

func (b *kafkaBus) Publish(ctx context.Context, topic string, data []byte) error {
	return b.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Value: data})
}

func (b *kafkaBus) Close() error { return b.writer.Close() }

type kafkaSub struct {
	r *kafka.Reader
}

func (s *kafkaSub) Next(ctx context.Context) (Message, error) {
	m, err := s.r.ReadMessage(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, ctxErr
		}
		if errors.Is(err, io.EOF) {
			return Message{}, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return Message{}, err
	}
	return Message{Subject: m.Topic, Data: m.Value}, nil
}

func (s *kafkaSub) Close() error { return s.r.Close() }
