package domain

import "time"

const stateIDSuffix = "_stateId"

// Challenge is an outstanding one-time code for an identity.
type Challenge struct {
	IdentityKey string
	Code        string
	CreatedAt   time.Time
	TTL         time.Duration
}

// StateIDKey returns the key holding the delivery provider's correlator.
func StateIDKey(identityKey string) string {
	return identityKey + stateIDSuffix
}
