package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/domain"
	"github.com/spec-kit/trustmesh/internal/events"
	"github.com/spec-kit/trustmesh/internal/repository"
	apperrors "github.com/spec-kit/trustmesh/pkg/util/errorutil"
)

var (
	ErrReviewNotFound = apperrors.NewNotFound("review", nil)
	ErrReportNotFound = apperrors.NewNotFound("report", nil)
	ErrNotAuthor      = apperrors.NewDomainError(apperrors.KindAuth, "NOT_AUTHOR", "only the author may delete this content", http.StatusForbidden, nil)
	ErrCleanupPending = apperrors.NewIntegrationError("MEDIA_CLEANUP_NOT_SCHEDULED", "content deleted but media cleanup could not be scheduled", nil)
)

// DeletionResult describes a removed aggregate and the media it referenced.
type DeletionResult struct {
	Kind     domain.AggregateKind `json:"kind"`
	ID       int64                `json:"id"`
	MediaIDs []int64              `json:"media_ids"`
}

// ContentService deletes reviews and reports and schedules cleanup of the
// media they referenced.
type ContentService struct {
	content    repository.ContentRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewContentService builds the service.
func NewContentService(content repository.ContentRepository, dispatcher events.Dispatcher, logger *zap.Logger) *ContentService {
	return &ContentService{content: content, dispatcher: dispatcher, logger: logger}
}

// DeleteReview removes a review written by the calling administrator.
func (s *ContentService) DeleteReview(ctx context.Context, caller *auth.Principal, id int64) (*DeletionResult, error) {
	if caller == nil || caller.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("administrator role required")
	}

	review, err := s.content.GetReview(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, ErrReviewNotFound)
	}
	if !strings.EqualFold(review.AuthorEmail, caller.Email) {
		return nil, ErrNotAuthor
	}

	mediaIDs, err := s.content.DeleteReview(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, ErrReviewNotFound)
	}
	return s.afterDelete(ctx, domain.AggregateReview, id, mediaIDs)
}

// DeleteReport removes a report submitted by the calling user.
func (s *ContentService) DeleteReport(ctx context.Context, caller *auth.Principal, id int64) (*DeletionResult, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	report, err := s.content.GetReport(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, ErrReportNotFound)
	}
	if !strings.EqualFold(report.WriterEmail, caller.Email) {
		return nil, ErrNotAuthor
	}

	mediaIDs, err := s.content.DeleteReport(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, ErrReportNotFound)
	}
	return s.afterDelete(ctx, domain.AggregateReport, id, mediaIDs)
}

// afterDelete runs once the aggregate and its media rows are committed and
// emits one deletion event per media id.
func (s *ContentService) afterDelete(ctx context.Context, kind domain.AggregateKind, id int64, mediaIDs []int64) (*DeletionResult, error) {
	result := &DeletionResult{Kind: kind, ID: id, MediaIDs: mediaIDs}
	subject := fmt.Sprintf("%s:%d", kind, id)

	var errs error
	for _, mediaID := range mediaIDs {
		event := events.NewEvent(events.EventMediaDeletionRequested, subject, events.MediaDeletionPayload{
			MediaID:       mediaID,
			AggregateKind: kind,
			AggregateID:   id,
		})
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("media %d: %w", mediaID, err))
		}
	}

	s.logger.Info("content deleted",
		zap.String("kind", string(kind)),
		zap.Int64("id", id),
		zap.Int64s("media_ids", mediaIDs),
	)
	if errs != nil {
		s.logger.Error("media cleanup not scheduled",
			zap.String("subject", subject),
			zap.Int("failed", len(multierr.Errors(errs))),
			zap.Error(errs),
		)
		return result, ErrCleanupPending.Wrap(errs)
	}
	return result, nil
}

func notFoundOr(err error, notFound *apperrors.DomainError) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return apperrors.NewInternalError(err)
}
