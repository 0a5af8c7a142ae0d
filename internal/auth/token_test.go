package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/trustmesh/internal/domain"
)

var alice = &domain.Identity{ID: 1, Username: "alice", Email: "a@x.com", Role: domain.RoleUser}

func newTestTokenManager() *TokenManager {
	return NewTokenManager("test-secret", time.Hour, "trustmesh-iam", "trustmesh")
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := newTestTokenManager()

	token, err := tm.GenerateToken(alice)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", token.SubjectEmail)
	assert.Equal(t, time.Hour, token.ExpiresAt.Sub(token.IssuedAt))

	claims, err := tm.ParseToken(token.Value)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.Equal(t, "a@x.com", claims.Subject)
}

func TestTokenManager_TokensDifferPerIssue(t *testing.T) {
	tm := newTestTokenManager()
	first, err := tm.GenerateToken(alice)
	require.NoError(t, err)
	second, err := tm.GenerateToken(alice)
	require.NoError(t, err)

	assert.NotEqual(t, first.Value, second.Value)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := newTestTokenManager()
	issued := time.Now().Add(-2 * time.Hour)
	tm.now = func() time.Time { return issued }
	token, err := tm.GenerateToken(alice)
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ParseToken(token.Value)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_RejectsForeignTokens(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GenerateToken(alice)
	require.NoError(t, err)

	cases := map[string]*TokenManager{
		"other secret":   NewTokenManager("other-secret", time.Hour, "trustmesh-iam", "trustmesh"),
		"other issuer":   NewTokenManager("test-secret", time.Hour, "someone-else", "trustmesh"),
		"other audience": NewTokenManager("test-secret", time.Hour, "trustmesh-iam", "billing"),
	}
	for name, other := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := other.ParseToken(token.Value)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestTokenManager_RejectsNoneAlgorithm(t *testing.T) {
	tm := newTestTokenManager()
	claims := &Claims{
		Email: "a@x.com",
		Role:  domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "trustmesh-iam",
			Audience:  jwt.ClaimStrings{"trustmesh"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.ParseToken(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_RequiresEmail(t *testing.T) {
	_, err := newTestTokenManager().GenerateToken(&domain.Identity{Username: "x"})
	assert.Error(t, err)
}
