package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/config"
)

// Redis holds the client behind the challenge code store. The concrete
// client depends on REDIS_ADDR and REDIS_MASTER_NAME.
type Redis struct {
	Client redis.UniversalClient
}

// NewRedis builds the client. An unreachable server is logged, not
// fatal; the readiness endpoint reports it until it comes up.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	opts := universalOptions(cfg)
	client := redis.NewUniversalClient(opts)

	fields := []zap.Field{
		zap.Strings("addrs", opts.Addrs),
		zap.String("mode", redisMode(opts)),
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("unable to reach redis", append(fields, zap.Error(err))...)
	} else {
		logger.Info("connected to redis", fields...)
	}

	return &Redis{Client: client}
}

func universalOptions(cfg config.RedisConfig) *redis.UniversalOptions {
	var addrs []string
	for _, a := range strings.Split(cfg.Addr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return &redis.UniversalOptions{
		Addrs:       addrs,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MasterName:  cfg.MasterName,
		DialTimeout: cfg.DialTimeout,
	}
}

func redisMode(opts *redis.UniversalOptions) string {
	switch {
	case opts.MasterName != "":
		return "failover"
	case len(opts.Addrs) > 1:
		return "cluster"
	default:
		return "single"
	}
}

func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
