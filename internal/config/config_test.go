package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Minute, cfg.Challenge.TTL)
	assert.Equal(t, 6, cfg.Challenge.CodeLength)
	assert.Equal(t, "media_exchange", cfg.AMQP.Exchange)
	assert.Equal(t, "media_deletion_queue", cfg.AMQP.Queue)
	assert.Equal(t, "media.deletion", cfg.AMQP.RoutingKey)
	assert.Equal(t, VerifierModeLocal, cfg.Auth.VerifierMode)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CHALLENGE_TTL", "90s")
	t.Setenv("AMQP_MAX_ATTEMPTS", "3")
	t.Setenv("POSTGRES_MAX_CONNS", "20")
	t.Setenv("AUTH_VERIFIER_MODE", "remote")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 90*time.Second, cfg.Challenge.TTL)
	assert.Equal(t, 3, cfg.AMQP.MaxAttempts)
	assert.Equal(t, int32(20), cfg.Postgres.MaxConns)
	assert.Equal(t, VerifierModeRemote, cfg.Auth.VerifierMode)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown verifier mode": {"AUTH_VERIFIER_MODE": "sideways"},
		"empty secret":          {"AUTH_JWT_SECRET": " "},
		"short code":            {"CHALLENGE_CODE_LENGTH": "2"},
		"zero attempts":         {"AMQP_MAX_ATTEMPTS": "0"},
		"malformed duration":    {"CHALLENGE_TTL": "soon"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
