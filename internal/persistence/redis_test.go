package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/trustmesh/internal/config"
)

func TestNewRedis_SingleNode(t *testing.T) {
	mr := miniredis.RunT(t)
	core, logs := observer.New(zapcore.InfoLevel)

	rdb := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr(), DialTimeout: time.Second}, zap.New(core))
	t.Cleanup(rdb.Close)

	require.NoError(t, rdb.Ping(context.Background()))
	entries := logs.FilterMessage("connected to redis").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "single", entries[0].ContextMap()["mode"])
}

func TestNewRedis_UnreachableIsNotFatal(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	core, logs := observer.New(zapcore.WarnLevel)

	rdb := NewRedis(context.Background(), config.RedisConfig{Addr: addr, DialTimeout: 100 * time.Millisecond}, zap.New(core))
	t.Cleanup(rdb.Close)

	assert.Error(t, rdb.Ping(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("unable to reach redis").Len())
}

func TestUniversalOptions_SelectsMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RedisConfig
		want string
	}{
		{name: "single", cfg: config.RedisConfig{Addr: "r1:6379"}, want: "single"},
		{name: "cluster", cfg: config.RedisConfig{Addr: "r1:6379, r2:6379,"}, want: "cluster"},
		{name: "failover", cfg: config.RedisConfig{Addr: "s1:26379,s2:26379", MasterName: "codes"}, want: "failover"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := universalOptions(tt.cfg)
			assert.Equal(t, tt.want, redisMode(opts))
			for _, a := range opts.Addrs {
				assert.NotContains(t, a, " ")
			}
		})
	}
}

func TestRedis_NilSafe(t *testing.T) {
	var rdb *Redis
	assert.Error(t, rdb.Ping(context.Background()))
	assert.NotPanics(t, rdb.Close)
}
