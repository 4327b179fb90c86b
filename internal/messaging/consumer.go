package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// DefaultNackDelay is how long a consumer waits before nacking a message its
// handler failed on.
const DefaultNackDelay = time.Second

// errUndecodable marks payloads that can never be handled.
var errUndecodable = errors.New("undecodable payload")

// Handler processes a single event.
type Handler[T any] func(ctx context.Context, event *T) error

// ConsumerOption configures a Consumer.
type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	nackDelay time.Duration
}

// WithNackDelay sets the pause before a failed message is handed back to the
// broker. Zero nacks immediately.
func WithNackDelay(d time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		o.nackDelay = d
	}
}

// Consumer feeds the messages of one topic to a typed handler.
//
// A message is acked once the handler returns nil. Handler failures are
// nacked after the nack delay so the broker redelivers them. Payloads that do
// not decode into T are logged and acked, since no redelivery can fix them.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	opts       consumerOptions
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewConsumer creates a consumer of topic.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
	opts ...ConsumerOption,
) *Consumer[T] {
	o := consumerOptions{nackDelay: DefaultNackDelay}
	for _, opt := range opts {
		opt(&o)
	}

	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		opts:       o,
		logger:     logger.With(zap.String("topic", topic)),
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start subscribes and processes messages in the background until ctx is
// cancelled, the subscription closes or Shutdown is called.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		c.cancel()
		close(c.done)

		return fmt.Errorf("subscribe %s: %w", c.topic, err)
	}

	go c.run(ctx, msgs)

	return nil
}

func (c *Consumer[T]) run(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.settle(ctx, msg, c.process(ctx, msg))
		}
	}
}

func (c *Consumer[T]) process(ctx context.Context, msg *message.Message) error {
	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("%w: %w", errUndecodable, err)
	}

	return c.handler(ctx, &event)
}

// settle acks or nacks msg according to the processing result.
func (c *Consumer[T]) settle(ctx context.Context, msg *message.Message, err error) {
	log := c.logger.With(zap.String("messageId", msg.UUID))

	switch {
	case err == nil:
		msg.Ack()
		log.Debug("processed event",
			zap.String("publishedAt", msg.Metadata.Get(MetadataPublishedAt)),
		)
	case errors.Is(err, errUndecodable):
		log.Error("dropping undecodable event", zap.Error(err))
		msg.Ack()
	default:
		log.Error("failed to handle event", zap.Error(err))

		if c.opts.nackDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.opts.nackDelay):
			}
		}

		msg.Nack()
	}
}

// Shutdown stops the consumer and waits for the in-flight message to settle.
// It returns immediately for a consumer that was never started.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	<-c.done

	return nil
}
