package http

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/api/http/handlers"
	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/domain"
	"github.com/spec-kit/trustmesh/internal/events"
	"github.com/spec-kit/trustmesh/internal/service"
)

var contentTokens = tokenTable{
	"admin-token": {Email: "root@x.com", Role: domain.RoleAdmin},
	"other-admin": {Email: "ops@x.com", Role: domain.RoleAdmin},
	"user-token":  {Email: "a@x.com", Role: domain.RoleUser},
}

func contentApp(repo *fakeContent, dispatcher events.Dispatcher) *handlers.ContentHandler {
	return handlers.NewContentHandler(service.NewContentService(repo, dispatcher, zap.NewNop()))
}

func TestContent_DeleteReviewPublishesMediaEvents(t *testing.T) {
	repo := newFakeContent()
	require.NoError(t, repo.CreateReview(context.Background(), &domain.Review{ID: 5, AuthorEmail: "root@x.com"}, []int64{7, 8}))

	var published []int64
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventMediaDeletionRequested, func(_ context.Context, e events.Event) error {
		published = append(published, e.Payload.(events.MediaDeletionPayload).MediaID)
		return nil
	})

	app := newTestApp()
	RegisterContentRoutes(app, ContentRoutes{
		Content:        contentApp(repo, dispatcher),
		AuthMiddleware: auth.NewAuthMiddleware(contentTokens),
	})

	resp := do(t, app, request{method: http.MethodDelete, path: "/admin/reviews/5", bearer: "user-token"})
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = do(t, app, request{method: http.MethodDelete, path: "/admin/reviews/5", bearer: "other-admin"})
	assert.Equal(t, http.StatusForbidden, resp.status)
	assert.Equal(t, "NOT_AUTHOR", resp.errorCode(t))

	resp = do(t, app, request{method: http.MethodDelete, path: "/admin/reviews/5", bearer: "admin-token"})
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	data := resp.json(t)["data"].(map[string]any)
	assert.Equal(t, "review", data["kind"])
	assert.Equal(t, []int64{7, 8}, published)

	resp = do(t, app, request{method: http.MethodDelete, path: "/admin/reviews/5", bearer: "admin-token"})
	assert.Equal(t, http.StatusNotFound, resp.status)

	resp = do(t, app, request{method: http.MethodDelete, path: "/admin/reviews/abc", bearer: "admin-token"})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "INVALID_ID", resp.errorCode(t))
}

func TestContent_DeleteReport(t *testing.T) {
	repo := newFakeContent()
	require.NoError(t, repo.CreateReport(context.Background(), &domain.Report{ID: 3, WriterEmail: "a@x.com"}, []int64{11}))

	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventMediaDeletionRequested, func(context.Context, events.Event) error {
		return errors.New("broker down")
	})

	app := newTestApp()
	RegisterContentRoutes(app, ContentRoutes{
		Content:        contentApp(repo, dispatcher),
		AuthMiddleware: auth.NewAuthMiddleware(contentTokens),
	})

	resp := do(t, app, request{method: http.MethodDelete, path: "/user/reports/3"})
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = do(t, app, request{method: http.MethodDelete, path: "/user/reports/3", bearer: "admin-token"})
	assert.Equal(t, http.StatusForbidden, resp.status)

	// The report is gone even though cleanup could not be scheduled.
	resp = do(t, app, request{method: http.MethodDelete, path: "/user/reports/3", bearer: "user-token"})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "MEDIA_CLEANUP_NOT_SCHEDULED", resp.errorCode(t))

	_, err := repo.GetReport(context.Background(), 3)
	assert.Error(t, err)
}
