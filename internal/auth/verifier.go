package auth

import (
	"context"
	"errors"

	"github.com/spec-kit/trustmesh/internal/domain"
	"github.com/spec-kit/trustmesh/internal/repository"
	apperrors "github.com/spec-kit/trustmesh/pkg/util/errorutil"
)

// RoleHeader carries the resolved role on Check Token responses.
const RoleHeader = "X-Identity-Role"

var (
	ErrInvalidToken          = apperrors.NewAuthError("INVALID_TOKEN", "token is invalid")
	ErrExpiredToken          = apperrors.NewAuthError("TOKEN_EXPIRED", "token has expired")
	ErrUnknownSubject        = apperrors.NewAuthError("UNKNOWN_SUBJECT", "token subject does not exist")
	ErrRoleMismatch          = apperrors.NewAuthError("ROLE_MISMATCH", "token role does not match identity")
	ErrDelegationUnavailable = apperrors.NewIntegrationError("TOKEN_CHECK_UNAVAILABLE", "could not validate the token", nil)
)

// Principal represents the authenticated caller.
type Principal struct {
	Email    string
	Username string
	Role     domain.Role
}

// TokenVerifier resolves a bearer token to the calling principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// IdentityLookup finds identities across both identity spaces.
type IdentityLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
}

// LocalVerifier checks tokens with the shared signing key. With a lookup it
// also re-resolves the subject so the role comes from the identity space the
// subject lives in rather than from the payload.
type LocalVerifier struct {
	tokens     *TokenManager
	identities IdentityLookup
}

// NewLocalVerifier constructs a verifier. identities may be nil for services
// holding the key but not the identity store.
func NewLocalVerifier(tokens *TokenManager, identities IdentityLookup) *LocalVerifier {
	return &LocalVerifier{tokens: tokens, identities: identities}
}

func (v *LocalVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	claims, err := v.tokens.ParseToken(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken.Wrap(err)
	}

	if v.identities == nil {
		if !claims.Role.Valid() {
			return nil, ErrInvalidToken
		}
		return &Principal{Email: claims.Email, Username: claims.Username, Role: claims.Role}, nil
	}

	identity, err := v.identities.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, apperrors.NewInternalError(err)
	}
	if identity.Role != claims.Role {
		return nil, ErrRoleMismatch
	}
	return &Principal{Email: identity.Email, Username: identity.Username, Role: identity.Role}, nil
}
