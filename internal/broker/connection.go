package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/config"
)

// Dial connects to the broker, retrying at a fixed interval while the
// broker container is still starting.
func Dial(ctx context.Context, cfg config.AMQPConfig, connectionName string, logger *zap.Logger) (*amqp.Connection, error) {
	attempts := cfg.DialAttempts
	if attempts < 1 {
		attempts = 1
	}

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)

	conn, err := backoff.Retry(ctx, func() (*amqp.Connection, error) {
		return amqp.DialConfig(cfg.URL, amqp.Config{
			Properties: props,
			Heartbeat:  10 * time.Second,
		})
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(cfg.DialInterval)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("broker not reachable; retrying",
				zap.Error(err),
				zap.Duration("retry_in", next),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	logger.Info("connected to broker", zap.String("connection", connectionName))
	return conn, nil
}
