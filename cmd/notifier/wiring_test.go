package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-collab-notify/internal/application/events"
	"github.com/go-collab-notify/internal/infrastructure/rabbitmq"
	"github.com/go-collab-notify/internal/transport/queue"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// amqpChannel closes itself and its delivery streams on a 406, like the
// real client does when the broker closes a channel.
type amqpChannel struct {
	mu         sync.Mutex
	mismatch   map[string]bool
	deliveries []chan amqp.Delivery
	closed     bool
}

func (c *amqpChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.Queue{}, amqp.ErrClosed
	}
	if c.mismatch[name] {
		c.shut()
		return amqp.Queue{}, &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED"}
	}
	return amqp.Queue{Name: name}, nil
}

func (c *amqpChannel) PublishWithContext(context.Context, string, string, bool, bool, amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	return nil
}

func (c *amqpChannel) Qos(int, int, bool) error { return nil }

func (c *amqpChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := make(chan amqp.Delivery)
	c.deliveries = append(c.deliveries, d)
	return d, nil
}

func (c *amqpChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shut()
	return nil
}

func (c *amqpChannel) shut() {
	if c.closed {
		return
	}
	c.closed = true
	for _, d := range c.deliveries {
		close(d)
	}
}

type amqpConnection struct {
	mu       sync.Mutex
	mismatch map[string]bool
	opened   int
}

func (c *amqpConnection) Channel() (rabbitmq.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened++
	return &amqpChannel{mismatch: c.mismatch}, nil
}

func (c *amqpConnection) channels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

func (c *amqpConnection) Close() error { return nil }

func TestQueueMismatchAtPublish_KeepsConsumersRunning(t *testing.T) {
	conn := &amqpConnection{mismatch: map[string]bool{"invites": true}}
	broker := rabbitmq.New(rabbitmq.WithRetry(1, 0), rabbitmq.WithDialer(func(string) (rabbitmq.Connection, error) { return conn, nil }))
	require.NoError(t, broker.Connect(context.Background(), "amqp://test"))
	defer broker.Close()
	require.NoError(t, broker.SetPrefetch(rabbitmq.DefaultPrefetch))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	failed := make(chan struct{}, 1)
	set := &consumerSet{}
	set.start(ctx, "events", queue.NewConsumer(broker, "events", noopMaterializer{}), func() { failed <- struct{}{} })
	// control channel plus the consumer's own
	require.Eventually(t, func() bool { return conn.channels() == 2 }, time.Second, 5*time.Millisecond)

	producer := events.NewInviteProducer(broker, "invites", "events.invites", "dlq.events.invites")
	require.NoError(t, producer.EmitInviteCreated(context.Background(), map[string]any{"inviteId": "i1"}))
	require.NoError(t, producer.EmitInviteCreated(context.Background(), map[string]any{"inviteId": "i2"}))

	select {
	case <-failed:
		t.Fatal("consumer stopped after a queue config mismatch")
	case <-time.After(100 * time.Millisecond):
	}
	assert.NoError(t, set.Ready())

	cancel()
	set.wait()
}
