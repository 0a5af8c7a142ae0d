package service

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/repository"
	apperrors "github.com/spec-kit/trustmesh/pkg/util/errorutil"
)

// ErrBlobDeleteFailed is retryable; callers see 503.
var ErrBlobDeleteFailed = apperrors.NewDomainError(apperrors.KindIntegration, "BLOB_DELETE_FAILED", "could not delete stored object", http.StatusServiceUnavailable, nil)

// BlobDeleter removes stored objects by key.
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// MediaService owns media rows and their stored objects.
type MediaService struct {
	media  repository.MediaRepository
	blobs  BlobDeleter
	logger *zap.Logger
}

// NewMediaService builds the service. blobs may be nil.
func NewMediaService(media repository.MediaRepository, blobs BlobDeleter, logger *zap.Logger) *MediaService {
	return &MediaService{media: media, blobs: blobs, logger: logger}
}

// Delete removes media id and its object. Deleting an absent id succeeds,
// so redelivered events are harmless.
func (s *MediaService) Delete(ctx context.Context, id int64) error {
	media, err := s.media.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("media already deleted", zap.Int64("media_id", id))
			return nil
		}
		return apperrors.NewInternalError(err)
	}

	if s.blobs != nil {
		if err := s.blobs.Delete(ctx, media.StorageKey); err != nil {
			return ErrBlobDeleteFailed.Wrap(err)
		}
	}

	if err := s.media.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewInternalError(err)
	}

	s.logger.Info("media deleted", zap.Int64("media_id", id))
	return nil
}
