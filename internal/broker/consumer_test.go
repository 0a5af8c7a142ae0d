package broker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testOptions() ConsumerOptions {
	return ConsumerOptions{
		Queue:          "media_deletion_queue",
		Tag:            "mediagc-test",
		Prefetch:       4,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

type runningConsumer struct {
	ch     *fakeConsumeChannel
	ack    *fakeAcknowledger
	cancel context.CancelFunc
	done   chan error
}

func startConsumer(t *testing.T, opts ConsumerOptions, handler Handler) *runningConsumer {
	t.Helper()
	ch := newFakeConsumeChannel()
	consumer := NewConsumer(ch, opts, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx, handler) }()

	rc := &runningConsumer{ch: ch, ack: &fakeAcknowledger{}, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rc
}

func (rc *runningConsumer) deliver(tag uint64, body string) {
	rc.ch.deliveries <- amqp.Delivery{
		Acknowledger: rc.ack,
		DeliveryTag:  tag,
		MessageId:    "msg",
		Body:         []byte(body),
	}
}

func (rc *runningConsumer) waitSettled(t *testing.T, n int) []settlement {
	t.Helper()
	require.Eventually(t, func() bool { return len(rc.ack.all()) >= n }, 2*time.Second, 5*time.Millisecond)
	return rc.ack.all()
}

func TestConsumer_AcksAfterSuccess(t *testing.T) {
	var got atomic.Value
	rc := startConsumer(t, testOptions(), func(_ context.Context, body []byte) error {
		got.Store(string(body))
		return nil
	})

	rc.deliver(1, "42")

	s := rc.waitSettled(t, 1)
	assert.Equal(t, []settlement{{tag: 1, ack: true}}, s)
	assert.Equal(t, "42", got.Load())

	rc.ch.mu.Lock()
	assert.False(t, rc.ch.autoAck)
	assert.Equal(t, 4, rc.ch.prefetch)
	rc.ch.mu.Unlock()
}

func TestConsumer_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	rc := startConsumer(t, testOptions(), func(context.Context, []byte) error {
		if calls.Add(1) < 3 {
			return errors.New("media service unavailable")
		}
		return nil
	})

	rc.deliver(7, "7")

	s := rc.waitSettled(t, 1)
	assert.Equal(t, []settlement{{tag: 7, ack: true}}, s)
	assert.Equal(t, int32(3), calls.Load())
}

func TestConsumer_DeadLettersPermanentFailuresWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	rc := startConsumer(t, testOptions(), func(context.Context, []byte) error {
		calls.Add(1)
		return Permanent(errors.New("poison"))
	})

	rc.deliver(3, "garbage")

	s := rc.waitSettled(t, 1)
	assert.Equal(t, []settlement{{tag: 3, ack: false, requeue: false}}, s)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConsumer_DeadLettersAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	rc := startConsumer(t, testOptions(), func(context.Context, []byte) error {
		calls.Add(1)
		return errors.New("still down")
	})

	rc.deliver(9, "9")

	s := rc.waitSettled(t, 1)
	assert.Equal(t, []settlement{{tag: 9, ack: false, requeue: false}}, s)
	assert.Equal(t, int32(3), calls.Load())
}

func TestConsumer_RequeuesWhenStoppedDuringBackoff(t *testing.T) {
	opts := testOptions()
	opts.MaxAttempts = 5
	opts.InitialBackoff = 10 * time.Second
	opts.MaxBackoff = 10 * time.Second

	called := make(chan struct{}, 1)
	rc := startConsumer(t, opts, func(context.Context, []byte) error {
		select {
		case called <- struct{}{}:
		default:
		}
		return errors.New("down")
	})

	rc.deliver(11, "11")
	<-called
	rc.cancel()

	s := rc.waitSettled(t, 1)
	assert.Equal(t, []settlement{{tag: 11, ack: false, requeue: true}}, s)

	select {
	case err := <-rc.done:
		assert.NoError(t, err)
		rc.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumer_InFlightCallSurvivesCancellation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var sawCancel atomic.Bool

	rc := startConsumer(t, testOptions(), func(ctx context.Context, _ []byte) error {
		close(started)
		<-release
		sawCancel.Store(ctx.Err() != nil)
		return nil
	})

	rc.deliver(5, "5")
	<-started
	rc.cancel()
	close(release)

	s := rc.waitSettled(t, 1)
	assert.Equal(t, []settlement{{tag: 5, ack: true}}, s)
	assert.False(t, sawCancel.Load())
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	ch := newFakeConsumeChannel()
	consumer := NewConsumer(ch, testOptions(), zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, consumer.Run(ctx, func(context.Context, []byte) error { return nil }))
	assert.Equal(t, []string{"mediagc-test"}, ch.cancelled)
}

func TestConsumer_ReportsClosedDeliveries(t *testing.T) {
	ch := newFakeConsumeChannel()
	close(ch.deliveries)
	consumer := NewConsumer(ch, testOptions(), zap.NewNop(), nil)

	err := consumer.Run(context.Background(), func(context.Context, []byte) error { return nil })
	assert.ErrorIs(t, err, ErrDeliveriesClosed)
}
