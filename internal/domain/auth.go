package domain

import "time"

// Token represents issued bearer token metadata. Tokens are not stored.
type Token struct {
	Value        string
	SubjectEmail string
	Role         Role
	IssuedAt     time.Time
	ExpiresAt    time.Time
}
