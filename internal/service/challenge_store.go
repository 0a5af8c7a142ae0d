package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConsumeResult reports what ConsumeIfMatch found under a key.
type ConsumeResult int

const (
	ConsumeAbsent ConsumeResult = iota
	ConsumeMatched
	ConsumeMismatch
)

// ChallengeStore holds outstanding one-time codes with per-key expiry.
// Set overwrites, so the latest code for a key supersedes earlier ones.
type ChallengeStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	// ConsumeIfMatch atomically deletes key, and any extra keys, when its
	// value equals expected.
	ConsumeIfMatch(ctx context.Context, key, expected string, extra ...string) (ConsumeResult, error)
	Delete(ctx context.Context, keys ...string) error
}

var consumeScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 2
end
redis.call('DEL', unpack(KEYS))
return 1
`)

// RedisChallengeStore keeps codes in Redis with SET EX semantics.
type RedisChallengeStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisChallengeStore wraps client. keyPrefix namespaces every key.
func NewRedisChallengeStore(client redis.UniversalClient, keyPrefix string) *RedisChallengeStore {
	return &RedisChallengeStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisChallengeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err()
}

func (s *RedisChallengeStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *RedisChallengeStore) ConsumeIfMatch(ctx context.Context, key, expected string, extra ...string) (ConsumeResult, error) {
	keys := make([]string, 0, len(extra)+1)
	keys = append(keys, s.keyPrefix+key)
	for _, k := range extra {
		keys = append(keys, s.keyPrefix+k)
	}

	res, err := consumeScript.Run(ctx, s.client, keys, expected).Int()
	if err != nil {
		return ConsumeAbsent, err
	}
	switch res {
	case 1:
		return ConsumeMatched, nil
	case 2:
		return ConsumeMismatch, nil
	default:
		return ConsumeAbsent, nil
	}
}

func (s *RedisChallengeStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.keyPrefix + k
	}
	return s.client.Del(ctx, prefixed...).Err()
}
