package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/domain"
	"github.com/spec-kit/trustmesh/internal/repository"
)

func newTestApp() *fiber.App {
	app := NewApp("test", zap.NewNop(), nil)
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	return app
}

type request struct {
	method string
	path   string
	body   string
	bearer string
}

type response struct {
	status int
	header http.Header
	body   string
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.body), &out), r.body)
	return out
}

func (r response) errorCode(t *testing.T) string {
	t.Helper()
	errBody, ok := r.json(t)["error"].(map[string]any)
	require.True(t, ok, r.body)
	code, _ := errBody["code"].(string)
	return code
}

func do(t *testing.T, app *fiber.App, in request) response {
	t.Helper()
	var body io.Reader
	if in.body != "" {
		body = strings.NewReader(in.body)
	}
	req := httptest.NewRequest(in.method, in.path, body)
	if in.body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if in.bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+in.bearer)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: string(raw)}
}

// tokenTable resolves fixed tokens to principals.
type tokenTable map[string]*auth.Principal

func (t tokenTable) Verify(_ context.Context, token string) (*auth.Principal, error) {
	if p, ok := t[token]; ok {
		return p, nil
	}
	return nil, auth.ErrInvalidToken
}

type fakeContent struct {
	mu      sync.Mutex
	reviews map[int64]*domain.Review
	reports map[int64]*domain.Report
	media   map[int64][]int64
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		reviews: map[int64]*domain.Review{},
		reports: map[int64]*domain.Report{},
		media:   map[int64][]int64{},
	}
}

func (f *fakeContent) CreateReview(_ context.Context, review *domain.Review, mediaIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews[review.ID] = review
	f.media[review.ID] = mediaIDs
	return nil
}

func (f *fakeContent) CreateReport(_ context.Context, report *domain.Report, mediaIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.ID] = report
	f.media[-report.ID] = mediaIDs
	return nil
}

func (f *fakeContent) GetReview(_ context.Context, id int64) (*domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.reviews[id]; ok {
		return r, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeContent) GetReport(_ context.Context, id int64) (*domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.reports[id]; ok {
		return r, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeContent) ListMediaReferences(context.Context, domain.AggregateKind, int64) ([]domain.MediaReference, error) {
	return nil, nil
}

func (f *fakeContent) DeleteReview(_ context.Context, id int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reviews[id]; !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.reviews, id)
	return f.media[id], nil
}

func (f *fakeContent) DeleteReport(_ context.Context, id int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reports[id]; !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.reports, id)
	return f.media[-id], nil
}

type fakeMedia struct {
	mu    sync.Mutex
	items map[int64]*domain.Media
}

func (f *fakeMedia) Create(_ context.Context, media *domain.Media) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[media.ID] = media
	return nil
}

func (f *fakeMedia) GetByID(_ context.Context, id int64) (*domain.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.items[id]; ok {
		return m, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMedia) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}
