package service

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/domain"
	"github.com/spec-kit/trustmesh/internal/events"
	"github.com/spec-kit/trustmesh/internal/repository"
	apperrors "github.com/spec-kit/trustmesh/pkg/util/errorutil"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s.]+$`)

var (
	ErrEmailFormat       = apperrors.NewValidationError("EMAIL_FORMAT", "email format is invalid")
	ErrPasswordTooShort  = apperrors.NewValidationError("PASSWORD_TOO_SHORT", "password must be at least 6 characters")
	ErrUsernameRequired  = apperrors.NewValidationError("USERNAME_REQUIRED", "username is required")
	ErrUsernameTaken     = apperrors.NewConflict("USERNAME_TAKEN", "username already exists")
	ErrEmailTaken        = apperrors.NewConflict("EMAIL_TAKEN", "email already exists")
	ErrAccountNotFound   = apperrors.NewDomainError(apperrors.KindNotFound, "ACCOUNT_NOT_FOUND", "account not found", http.StatusBadRequest, nil)
	ErrIncorrectPassword = apperrors.NewDomainError(apperrors.KindAuth, "INCORRECT_PASSWORD", "incorrect password", http.StatusBadRequest, nil)
	ErrIdentityNotFound  = apperrors.NewNotFound("identity", nil)
)

// RegisterInput carries registration fields. ContactInfo and Bio apply to
// administrators only.
type RegisterInput struct {
	Username    string
	Email       string
	Name        string
	Password    string
	ContactInfo string
	Bio         string
}

// AuthResult pairs an identity with a freshly issued token.
type AuthResult struct {
	Identity *domain.Identity
	Token    *domain.Token
}

// IdentityService coordinates registration, login and token resolution
// across the user and admin identity spaces.
type IdentityService struct {
	identities repository.IdentityRepository
	hasher     auth.Hasher
	tokens     *auth.TokenManager
	verifier   *auth.LocalVerifier
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewIdentityService builds the service.
func NewIdentityService(
	identities repository.IdentityRepository,
	hasher auth.Hasher,
	tokens *auth.TokenManager,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *IdentityService {
	return &IdentityService{
		identities: identities,
		hasher:     hasher,
		tokens:     tokens,
		verifier:   auth.NewLocalVerifier(tokens, identities),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Register creates an unverified end-user account.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	return s.register(ctx, in, domain.RoleUser)
}

// RegisterAdmin creates an administrator. Admins skip the challenge step.
func (s *IdentityService) RegisterAdmin(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	return s.register(ctx, in, domain.RoleAdmin)
}

func (s *IdentityService) register(ctx context.Context, in RegisterInput, role domain.Role) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if !emailPattern.MatchString(email) {
		return nil, ErrEmailFormat
	}
	if len(in.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if username == "" {
		return nil, ErrUsernameRequired
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	identity := &domain.Identity{
		Username:       username,
		Email:          email,
		Name:           strings.TrimSpace(in.Name),
		PasswordDigest: digest,
		Role:           role,
		Verified:       role == domain.RoleAdmin,
	}
	if role == domain.RoleAdmin {
		identity.ContactInfo = in.ContactInfo
		identity.Bio = in.Bio
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, ErrUsernameTaken
		default:
			return nil, apperrors.NewInternalError(err)
		}
	}

	token, err := s.tokens.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("identity registered",
		zap.Int64("identity_id", identity.ID),
		zap.String("role", string(role)),
	)
	s.publish(ctx, events.NewEvent(events.EventIdentityRegistered, identity.Email, events.IdentityPayload{
		IdentityID: identity.ID,
		Username:   identity.Username,
		Role:       identity.Role,
	}))

	return &AuthResult{Identity: identity, Token: token}, nil
}

// Login authenticates by email in either identity space.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	identity, err := s.identities.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, apperrors.NewInternalError(err)
	}

	if err := s.hasher.Compare(identity.PasswordDigest, password); err != nil {
		if errors.Is(err, auth.ErrDigestMismatch) {
			return nil, ErrIncorrectPassword
		}
		return nil, apperrors.NewInternalError(err)
	}

	token, err := s.tokens.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{Identity: identity, Token: token}, nil
}

// ResolveByToken returns the end-user a token was issued for.
func (s *IdentityService) ResolveByToken(ctx context.Context, token string) (*domain.Identity, error) {
	return s.resolve(ctx, token, domain.RoleUser)
}

// ResolveAdminByToken returns the administrator a token was issued for.
func (s *IdentityService) ResolveAdminByToken(ctx context.Context, token string) (*domain.Identity, error) {
	return s.resolve(ctx, token, domain.RoleAdmin)
}

func (s *IdentityService) resolve(ctx context.Context, token string, role domain.Role) (*domain.Identity, error) {
	principal, err := s.verifier.Verify(ctx, token)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindAuth {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	if principal.Role != role {
		return nil, ErrIdentityNotFound
	}

	identity, err := s.identities.GetByEmail(ctx, principal.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, apperrors.NewInternalError(err)
	}
	return identity, nil
}

// CheckToken validates a token for services that do not hold the signing
// key and resolves the subject in whichever identity space owns it.
func (s *IdentityService) CheckToken(ctx context.Context, token string) (*auth.Principal, error) {
	return s.verifier.Verify(ctx, token)
}

// ChangePassword re-hashes the password of the identity behind email after
// checking the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	identity, err := s.identities.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return apperrors.NewInternalError(err)
	}
	if err := s.hasher.Compare(identity.PasswordDigest, currentPassword); err != nil {
		if errors.Is(err, auth.ErrDigestMismatch) {
			return ErrIncorrectPassword
		}
		return apperrors.NewInternalError(err)
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	identity.PasswordDigest = digest
	if err := s.identities.UpdatePassword(ctx, identity); err != nil {
		return apperrors.NewInternalError(err)
	}

	s.logger.Info("password changed", zap.Int64("identity_id", identity.ID), zap.String("role", string(identity.Role)))
	return nil
}

func (s *IdentityService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
