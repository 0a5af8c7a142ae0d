package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/broker"
	"github.com/spec-kit/trustmesh/internal/events"
)

// MediaDeleter removes a media asset by id. Deleting an absent id succeeds.
type MediaDeleter interface {
	Delete(ctx context.Context, id int64) error
}

// MediaCollector turns deletion messages into media service calls.
type MediaCollector struct {
	media  MediaDeleter
	logger *zap.Logger
}

// NewMediaCollector constructs the collector.
func NewMediaCollector(media MediaDeleter, logger *zap.Logger) *MediaCollector {
	return &MediaCollector{media: media, logger: logger}
}

// Handle processes one message body. Undecodable bodies are permanent
// failures.
func (m *MediaCollector) Handle(ctx context.Context, body []byte) error {
	mediaID, err := events.DecodeMediaDeletion(body)
	if err != nil {
		if errors.Is(err, events.ErrMalformedPayload) {
			return broker.Permanent(err)
		}
		return err
	}

	if err := m.media.Delete(ctx, mediaID); err != nil {
		return err
	}
	m.logger.Info("media deleted", zap.Int64("media_id", mediaID))
	return nil
}

// RunMediaCollector consumes deletion events until ctx is cancelled.
func RunMediaCollector(ctx context.Context, consumer *broker.Consumer, collector *MediaCollector) error {
	return consumer.Run(ctx, collector.Handle)
}
