package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/trustmesh/internal/domain"
)

// MemoryIdentityRepository keeps identities in process. It backs the
// identity service when no Postgres DSN is configured, and the tests.
type MemoryIdentityRepository struct {
	mu         sync.Mutex
	nextID     map[domain.Role]int64
	byEmail    map[string]*domain.Identity
	byUsername map[string]*domain.Identity
}

// NewMemoryIdentityRepository returns an empty repository.
func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{
		nextID:     map[domain.Role]int64{},
		byEmail:    map[string]*domain.Identity{},
		byUsername: map[string]*domain.Identity{},
	}
}

func (r *MemoryIdentityRepository) Create(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[identity.Email]; taken {
		return ErrEmailTaken
	}
	if _, taken := r.byUsername[identity.Username]; taken {
		return ErrUsernameTaken
	}

	r.nextID[identity.Role]++
	now := time.Now().UTC()
	identity.ID = r.nextID[identity.Role]
	identity.CreatedAt = now
	identity.UpdatedAt = now

	stored := *identity
	r.byEmail[stored.Email] = &stored
	r.byUsername[stored.Username] = &stored
	return nil
}

func (r *MemoryIdentityRepository) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyOrNotFound(r.byEmail[email])
}

func (r *MemoryIdentityRepository) GetByUsername(_ context.Context, username string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyOrNotFound(r.byUsername[username])
}

func (r *MemoryIdentityRepository) UpdatePassword(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.find(identity.Role, identity.ID)
	if stored == nil {
		return ErrNotFound
	}
	stored.PasswordDigest = identity.PasswordDigest
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryIdentityRepository) MarkVerified(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.find(domain.RoleUser, id)
	if stored == nil {
		return ErrNotFound
	}
	stored.Verified = true
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryIdentityRepository) find(role domain.Role, id int64) *domain.Identity {
	for _, identity := range r.byEmail {
		if identity.Role == role && identity.ID == id {
			return identity
		}
	}
	return nil
}

func copyOrNotFound(identity *domain.Identity) (*domain.Identity, error) {
	if identity == nil {
		return nil, ErrNotFound
	}
	cp := *identity
	return &cp, nil
}
