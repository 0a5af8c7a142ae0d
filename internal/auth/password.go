package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrDigestMismatch is returned when a secret does not match its digest.
var ErrDigestMismatch = errors.New("digest mismatch")

// Hasher turns a credential into a stored digest and checks it later.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(digest, secret string) error
}

// NewHasher selects a hasher by name.
func NewHasher(kind string, bcryptCost int) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "bcrypt":
		return BcryptHasher{Cost: bcryptCost}, nil
	case "sha256":
		return SHA256Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", kind)
	}
}

// BcryptHasher hashes passwords with bcrypt at the configured cost.
type BcryptHasher struct {
	Cost int
}

// Hash hashes a plaintext password with configured cost.
func (h BcryptHasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare verifies a password against its hashed value.
func (h BcryptHasher) Compare(digest, secret string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrDigestMismatch
		}
		return err
	}
	return nil
}

// SHA256Hasher produces unsalted upper-case hex SHA-256 digests, the format
// of accounts imported from the previous deployment.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(secret string) (string, error) {
	sum := sha256.Sum256([]byte(secret))
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

func (h SHA256Hasher) Compare(digest, secret string) error {
	computed, _ := h.Hash(secret)
	if subtle.ConstantTimeCompare([]byte(strings.ToUpper(digest)), []byte(computed)) != 1 {
		return ErrDigestMismatch
	}
	return nil
}
