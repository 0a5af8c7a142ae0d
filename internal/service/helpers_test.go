package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/domain"
	"github.com/spec-kit/trustmesh/internal/events"
	"github.com/spec-kit/trustmesh/internal/repository"
)

type identityFixture struct {
	svc        *IdentityService
	repo       *repository.MemoryIdentityRepository
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()
	repo := repository.NewMemoryIdentityRepository()
	tokens := auth.NewTokenManager("test-secret", time.Hour, "trustmesh-iam", "trustmesh")
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewIdentityService(repo, auth.BcryptHasher{Cost: bcrypt.MinCost}, tokens, dispatcher, zap.NewNop())
	return &identityFixture{svc: svc, repo: repo, tokens: tokens, dispatcher: dispatcher}
}

func (f *identityFixture) registerAlice(t *testing.T) *AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "a@x.com",
		Name:     "Alice",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	return res
}

// sequenceCodes hands out codes in order.
type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
}

func (s *sequenceCodes) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return "", errors.New("no codes left")
	}
	code := s.codes[0]
	s.codes = s.codes[1:]
	return code, nil
}

type recordingSender struct {
	mu         sync.Mutex
	deliveries []CodeDelivery
	stateID    string
	err        error
}

func (r *recordingSender) SendCode(_ context.Context, d CodeDelivery) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.deliveries = append(r.deliveries, d)
	return r.stateID, nil
}

// memoryContent is an in-memory ContentRepository.
type memoryContent struct {
	mu      sync.Mutex
	reviews map[int64]domain.Review
	reports map[int64]domain.Report
	media   map[domain.AggregateKind]map[int64][]int64
}

func newMemoryContent() *memoryContent {
	return &memoryContent{
		reviews: map[int64]domain.Review{},
		reports: map[int64]domain.Report{},
		media: map[domain.AggregateKind]map[int64][]int64{
			domain.AggregateReview: {},
			domain.AggregateReport: {},
		},
	}
}

func (m *memoryContent) CreateReview(_ context.Context, review *domain.Review, mediaIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	review.ID = int64(len(m.reviews) + 1)
	m.reviews[review.ID] = *review
	m.media[domain.AggregateReview][review.ID] = mediaIDs
	return nil
}

func (m *memoryContent) CreateReport(_ context.Context, report *domain.Report, mediaIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	report.ID = int64(len(m.reports) + 1)
	m.reports[report.ID] = *report
	m.media[domain.AggregateReport][report.ID] = mediaIDs
	return nil
}

func (m *memoryContent) GetReview(_ context.Context, id int64) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &review, nil
}

func (m *memoryContent) GetReport(_ context.Context, id int64) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &report, nil
}

func (m *memoryContent) ListMediaReferences(_ context.Context, kind domain.AggregateKind, id int64) ([]domain.MediaReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []domain.MediaReference
	for _, mediaID := range m.media[kind][id] {
		refs = append(refs, domain.MediaReference{Kind: kind, AggregateID: id, MediaID: mediaID})
	}
	return refs, nil
}

func (m *memoryContent) DeleteReview(_ context.Context, id int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return nil, repository.ErrNotFound
	}
	delete(m.reviews, id)
	ids := m.media[domain.AggregateReview][id]
	delete(m.media[domain.AggregateReview], id)
	return ids, nil
}

func (m *memoryContent) DeleteReport(_ context.Context, id int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return nil, repository.ErrNotFound
	}
	delete(m.reports, id)
	ids := m.media[domain.AggregateReport][id]
	delete(m.media[domain.AggregateReport], id)
	return ids, nil
}

// memoryMedia is an in-memory MediaRepository.
type memoryMedia struct {
	mu    sync.Mutex
	items map[int64]domain.Media
}

func (m *memoryMedia) Create(_ context.Context, media *domain.Media) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	media.ID = int64(len(m.items) + 1)
	m.items[media.ID] = *media
	return nil
}

func (m *memoryMedia) GetByID(_ context.Context, id int64) (*domain.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	media, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &media, nil
}

func (m *memoryMedia) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type recordingBlobs struct {
	keys []string
	err  error
}

func (r *recordingBlobs) Delete(_ context.Context, key string) error {
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, key)
	return nil
}
