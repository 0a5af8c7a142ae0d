package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/events"
	"github.com/spec-kit/trustmesh/internal/observability"
)

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("broker did not confirm publish")

// PublishChannel is the subset of *amqp.Channel the publisher needs.
type PublishChannel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

// Publisher sends media deletion events with publisher confirms.
type Publisher struct {
	mu       sync.Mutex
	ch       PublishChannel
	topology Topology
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewPublisher opens a confirm-mode channel on conn and declares the topology.
func NewPublisher(conn *amqp.Connection, topology Topology, logger *zap.Logger, metrics *observability.Metrics) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := topology.Declare(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	return NewPublisherWithChannel(ch, topology, logger, metrics), nil
}

// NewPublisherWithChannel wraps an already prepared channel.
func NewPublisherWithChannel(ch PublishChannel, topology Topology, logger *zap.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{ch: ch, topology: topology, logger: logger, metrics: metrics}
}

// PublishMediaDeletion publishes one persistent message for mediaID and
// waits for the broker's confirm.
func (p *Publisher) PublishMediaDeletion(ctx context.Context, mediaID int64) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         string(events.EventMediaDeletionRequested),
		Body:         events.EncodeMediaDeletion(mediaID),
	}

	p.mu.Lock()
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.topology.Exchange, p.topology.RoutingKey, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		p.metrics.RecordPublish("failed")
		return fmt.Errorf("publish media %d: %w", mediaID, err)
	}

	// confirm is nil when the channel is not in confirm mode.
	if confirm != nil {
		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			p.metrics.RecordPublish("failed")
			return fmt.Errorf("await confirm for media %d: %w", mediaID, err)
		}
		if !acked {
			p.metrics.RecordPublish("nacked")
			return fmt.Errorf("media %d: %w", mediaID, ErrNotConfirmed)
		}
	}

	p.metrics.RecordPublish("published")
	p.logger.Info("media deletion published",
		zap.Int64("media_id", mediaID),
		zap.String("message_id", msg.MessageId),
	)
	return nil
}

// HandleMediaDeletion adapts PublishMediaDeletion to an events.EventHandler.
func (p *Publisher) HandleMediaDeletion(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MediaDeletionPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return p.PublishMediaDeletion(ctx, payload.MediaID)
}

// Close closes the channel.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
