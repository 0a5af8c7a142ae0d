package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/config"
	"github.com/spec-kit/trustmesh/internal/observability"
)

// ErrDeliveriesClosed is returned by Run when the broker closes the
// delivery channel underneath the consumer.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Handler processes one message body. Returning nil acknowledges the
// delivery; errors marked Permanent are dead-lettered without retry.
type Handler func(ctx context.Context, body []byte) error

// ConsumeChannel is the subset of *amqp.Channel the consumer needs.
type ConsumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
}

// ConsumerOptions controls prefetch and the per-delivery retry budget.
type ConsumerOptions struct {
	Queue          string
	Tag            string
	Prefetch       int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ConsumerOptionsFromConfig reads consumer settings.
func ConsumerOptionsFromConfig(cfg config.AMQPConfig) ConsumerOptions {
	return ConsumerOptions{
		Queue:          cfg.Queue,
		Tag:            cfg.ConsumerTag,
		Prefetch:       cfg.Prefetch,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}
}

// Consumer drains a queue with manual acknowledgements.
type Consumer struct {
	ch      ConsumeChannel
	opts    ConsumerOptions
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewConsumer constructs a consumer over ch.
func NewConsumer(ch ConsumeChannel, opts ConsumerOptions, logger *zap.Logger, metrics *observability.Metrics) *Consumer {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Consumer{ch: ch, opts: opts, logger: logger, metrics: metrics}
}

// Run consumes until ctx is cancelled. Deliveries are handled one at a
// time; the delivery in flight when ctx is cancelled is finished before Run
// returns. Returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	if err := c.ch.Qos(c.opts.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := c.ch.Consume(c.opts.Queue, c.opts.Tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.opts.Queue, err)
	}

	c.logger.Info("consumer started",
		zap.String("queue", c.opts.Queue),
		zap.Int("prefetch", c.opts.Prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			if err := c.ch.Cancel(c.opts.Tag, false); err != nil {
				c.logger.Warn("cancel consumer", zap.Error(err))
			}
			c.logger.Info("consumer stopped", zap.String("queue", c.opts.Queue))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.process(ctx, d, handler)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery, handler Handler) {
	// The downstream call itself is not interrupted by shutdown.
	handleCtx := context.WithoutCancel(ctx)

	var (
		attempts int
		lastErr  error
	)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		lastErr = handler(handleCtx, d.Body)
		if lastErr != nil && IsPermanent(lastErr) {
			return struct{}{}, backoff.Permanent(lastErr)
		}
		return struct{}{}, lastErr
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.opts.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.RecordConsumed("retried")
			c.logger.Warn("delivery failed; retrying",
				zap.String("message_id", d.MessageId),
				zap.Int("attempt", attempts),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)

	fields := []zap.Field{
		zap.String("message_id", d.MessageId),
		zap.Uint64("delivery_tag", d.DeliveryTag),
		zap.Int("attempts", attempts),
	}

	switch {
	case err == nil:
		c.settle(d.Ack(false), "acked", fields)
	case IsPermanent(lastErr):
		c.settle(d.Nack(false, false), "dead_lettered", append(fields, zap.Error(lastErr), zap.Bool("permanent", true)))
	case ctx.Err() != nil:
		// Shutting down mid-backoff: hand the message back for redelivery.
		c.settle(d.Nack(false, true), "requeued", append(fields, zap.Error(lastErr)))
	default:
		c.settle(d.Nack(false, false), "dead_lettered", append(fields, zap.Error(lastErr)))
	}
}

func (c *Consumer) settle(err error, outcome string, fields []zap.Field) {
	if err != nil {
		c.logger.Error("settle delivery", append(fields, zap.String("outcome", outcome), zap.NamedError("settle_error", err))...)
		return
	}
	c.metrics.RecordConsumed(outcome)
	if outcome == "acked" {
		c.logger.Info("delivery processed", fields...)
		return
	}
	c.logger.Warn("delivery not processed", append(fields, zap.String("outcome", outcome))...)
}

func (c *Consumer) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.opts.InitialBackoff > 0 {
		b.InitialInterval = c.opts.InitialBackoff
	}
	if c.opts.MaxBackoff > 0 {
		b.MaxInterval = c.opts.MaxBackoff
	}
	return b
}
