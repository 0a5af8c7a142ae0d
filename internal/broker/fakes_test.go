package broker

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type settlement struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	mu          sync.Mutex
	settlements []settlement
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settlements = append(f.settlements, settlement{tag: tag, ack: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settlements = append(f.settlements, settlement{tag: tag, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) all() []settlement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]settlement(nil), f.settlements...)
}

type fakeConsumeChannel struct {
	deliveries chan amqp.Delivery

	mu        sync.Mutex
	prefetch  int
	autoAck   bool
	cancelled []string
}

func newFakeConsumeChannel() *fakeConsumeChannel {
	return &fakeConsumeChannel{deliveries: make(chan amqp.Delivery, 16)}
}

func (f *fakeConsumeChannel) Qos(prefetchCount, _ int, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefetch = prefetchCount
	return nil
}

func (f *fakeConsumeChannel) Consume(_, _ string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoAck = autoAck
	return f.deliveries, nil
}

func (f *fakeConsumeChannel) Cancel(consumer string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, consumer)
	return nil
}

type publishCall struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakePublishChannel struct {
	mu     sync.Mutex
	calls  []publishCall
	err    error
	closed bool
}

func (f *fakePublishChannel) PublishWithDeferredConfirmWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, publishCall{exchange: exchange, key: key, msg: msg})
	return nil, nil
}

func (f *fakePublishChannel) Close() error {
	f.closed = true
	return nil
}

type declared struct {
	kind string
	name string
	args amqp.Table
	key  string
	to   string
}

type fakeDeclarer struct {
	calls []declared
}

func (f *fakeDeclarer) ExchangeDeclare(name, kind string, durable, _, _, _ bool, args amqp.Table) error {
	f.calls = append(f.calls, declared{kind: "exchange:" + kind, name: name, args: args})
	return nil
}

func (f *fakeDeclarer) QueueDeclare(name string, durable, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	f.calls = append(f.calls, declared{kind: "queue", name: name, args: args})
	return amqp.Queue{Name: name}, nil
}

func (f *fakeDeclarer) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	f.calls = append(f.calls, declared{kind: "bind", name: name, key: key, to: exchange})
	return nil
}
