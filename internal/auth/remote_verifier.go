package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/spec-kit/trustmesh/internal/domain"
)

const maxCheckResponseBytes = 4 << 10

// RemoteVerifier delegates token checks to the identity service's
// Check Token endpoint and treats the plain-text response as the email.
type RemoteVerifier struct {
	endpoint string
	client   *http.Client
	cache    *lru.LRU[string, cachedPrincipal]
	now      func() time.Time
}

// cachedPrincipal is a checked principal valid until its token expires.
type cachedPrincipal struct {
	principal Principal
	expiresAt time.Time
}

// RemoteVerifierOptions configures a RemoteVerifier.
type RemoteVerifierOptions struct {
	Endpoint  string
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
	Client    *http.Client
}

// NewRemoteVerifier builds a delegated verifier. A zero CacheTTL disables caching.
func NewRemoteVerifier(opts RemoteVerifierOptions) *RemoteVerifier {
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	v := &RemoteVerifier{endpoint: opts.Endpoint, client: client, now: time.Now}
	if opts.CacheTTL > 0 {
		size := opts.CacheSize
		if size <= 0 {
			size = 1024
		}
		v.cache = lru.NewLRU[string, cachedPrincipal](size, nil, opts.CacheTTL)
	}
	return v
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	if v.cache != nil {
		if entry, ok := v.cache.Get(token); ok {
			if v.now().Before(entry.expiresAt) {
				p := entry.principal
				return &p, nil
			}
			v.cache.Remove(token)
		}
	}

	body, err := json.Marshal(token)
	if err != nil {
		return nil, ErrInvalidToken.Wrap(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ErrDelegationUnavailable.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, ErrDelegationUnavailable.Wrap(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCheckResponseBytes))
	if err != nil {
		return nil, ErrDelegationUnavailable.Wrap(err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, ErrDelegationUnavailable.Wrap(fmt.Errorf("check token returned %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, ErrInvalidToken.Wrap(fmt.Errorf("check token returned %d", resp.StatusCode))
	}

	email := decodeCheckedEmail(raw)
	if email == "" {
		return nil, ErrInvalidToken
	}

	p := Principal{Email: email, Role: domain.Role(resp.Header.Get(RoleHeader))}
	if !p.Role.Valid() {
		p.Role = ""
	}
	if v.cache != nil {
		if exp, ok := tokenExpiry(token); ok && v.now().Before(exp) {
			v.cache.Add(token, cachedPrincipal{principal: p, expiresAt: exp})
		}
	}
	return &p, nil
}

// tokenExpiry reads exp without checking the signature. It only bounds how
// long a check answered by the identity service is reused; tokens without a
// readable exp are never cached.
func tokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// decodeCheckedEmail accepts both a bare and a JSON-quoted email body.
func decodeCheckedEmail(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	var quoted string
	if json.Unmarshal(trimmed, &quoted) == nil {
		return strings.TrimSpace(quoted)
	}
	return string(trimmed)
}
