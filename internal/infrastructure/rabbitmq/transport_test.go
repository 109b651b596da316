package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type mockChannel struct{ mock.Mock }

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	a := m.Called(name, durable, args)
	return amqp.Queue{Name: name}, a.Error(0)
}
func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, msg).Error(0)
}
func (m *mockChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return m.Called(prefetchCount).Error(0)
}
func (m *mockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	a := m.Called(queue, autoAck)
	ch, _ := a.Get(0).(<-chan amqp.Delivery)
	return ch, a.Error(1)
}
func (m *mockChannel) Close() error { return m.Called().Error(0) }

// brokerChannel mimics *amqp.Channel closing: a 406 on QueueDeclare closes
// the channel and every delivery stream it handed out.
type brokerChannel struct {
	mu         sync.Mutex
	mismatch   map[string]bool
	deliveries []chan amqp.Delivery
	closed     bool
	qos        int
}

func (c *brokerChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.Queue{}, amqp.ErrClosed
	}
	if c.mismatch[name] {
		c.closeLocked()
		return amqp.Queue{}, &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - inequivalent arg"}
	}
	return amqp.Queue{Name: name}, nil
}
func (c *brokerChannel) PublishWithContext(context.Context, string, string, bool, bool, amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	return nil
}
func (c *brokerChannel) Qos(n, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qos = n
	return nil
}
func (c *brokerChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, amqp.ErrClosed
	}
	d := make(chan amqp.Delivery)
	c.deliveries = append(c.deliveries, d)
	return d, nil
}
func (c *brokerChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
func (c *brokerChannel) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	for _, d := range c.deliveries {
		close(d)
	}
}

type fakeConnection struct {
	channels []Channel
	opened   int
	closed   bool
	closeErr error
}

func (c *fakeConnection) Channel() (Channel, error) {
	if c.opened >= len(c.channels) {
		return nil, errors.New("no more channels")
	}
	ch := c.channels[c.opened]
	c.opened++
	return ch, nil
}
func (c *fakeConnection) Close() error {
	c.closed = true
	return c.closeErr
}

func connected(t *testing.T, channels ...Channel) (*Transport, *fakeConnection) {
	t.Helper()
	conn := &fakeConnection{channels: channels}
	tr := New(WithDialer(func(string) (Connection, error) { return conn, nil }), WithRetry(1, 0))
	require.NoError(t, tr.Connect(context.Background(), "amqp://test"))
	return tr, conn
}

// --- Connect ---

func TestConnect_RetriesThenSucceeds(t *testing.T) {
	ch := &mockChannel{}
	conn := &fakeConnection{channels: []Channel{ch}}
	calls := 0
	tr := New(WithRetry(3, time.Millisecond), WithDialer(func(string) (Connection, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return conn, nil
	}))

	require.NoError(t, tr.Connect(context.Background(), "amqp://test"))
	assert.Equal(t, 3, calls)
}

func TestConnect_ExhaustedAttempts_ReturnsBrokerConnectionFailed(t *testing.T) {
	calls := 0
	tr := New(WithRetry(4, 0), WithDialer(func(string) (Connection, error) {
		calls++
		return nil, errors.New("connection refused")
	}))

	err := tr.Connect(context.Background(), "amqp://test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBrokerConnectionFailed))
	assert.Equal(t, 4, calls)
}

func TestConnect_ContextCancelled_StopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	tr := New(WithRetry(10, time.Hour), WithDialer(func(string) (Connection, error) {
		calls++
		cancel()
		return nil, errors.New("connection refused")
	}))

	err := tr.Connect(ctx, "amqp://test")
	assert.True(t, errors.Is(err, ErrBrokerConnectionFailed))
	assert.Equal(t, 1, calls)
}

func TestNew_Defaults(t *testing.T) {
	tr := New()
	assert.Equal(t, 10, tr.attempts)
	assert.Equal(t, 3*time.Second, tr.delay)
}

// --- not initialized ---

func TestPublish_WithoutConnect_ReturnsChannelNotInitialized(t *testing.T) {
	tr := New()
	err := tr.Publish(context.Background(), "events", []byte(`{}`))
	assert.True(t, errors.Is(err, ErrChannelNotInitialized))
	assert.True(t, errors.Is(tr.AssertDurableQueue("events"), ErrChannelNotInitialized))
	assert.True(t, errors.Is(tr.SetPrefetch(50), ErrChannelNotInitialized))
	_, err = tr.Consume("events", "notifier")
	assert.True(t, errors.Is(err, ErrChannelNotInitialized))
}

// --- queues ---

func TestAssertEventQueue_WiresDeadLetterQueue(t *testing.T) {
	ch := &mockChannel{}
	ch.On("QueueDeclare", "events.members", true, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": "dlq.events.members",
	}).Return(nil).Once()
	ch.On("QueueDeclare", "dlq.events.members", true, amqp.Table(nil)).Return(nil).Once()
	tr, _ := connected(t, ch)

	require.NoError(t, tr.AssertEventQueue("events.members", "dlq.events.members"))
	ch.AssertExpectations(t)
}

func TestAssertDurableQueue_PreconditionFailed_ReturnsQueueConfigMismatch(t *testing.T) {
	ch := &mockChannel{}
	ch.On("QueueDeclare", "invites", true, amqp.Table(nil)).
		Return(&amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - inequivalent arg 'durable'"})
	tr, _ := connected(t, ch)

	err := tr.AssertDurableQueue("invites")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueConfigMismatch))
}

func TestAssertDurableQueue_OtherError_IsNotMismatch(t *testing.T) {
	ch := &mockChannel{}
	ch.On("QueueDeclare", "invites", true, amqp.Table(nil)).Return(amqp.ErrClosed)
	tr, _ := connected(t, ch)

	err := tr.AssertDurableQueue("invites")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrQueueConfigMismatch))
}

// --- publish ---

func TestPublish_SendsPersistentMessage(t *testing.T) {
	ch := &mockChannel{}
	ch.On("PublishWithContext", "", "events", mock.MatchedBy(func(p amqp.Publishing) bool {
		return p.DeliveryMode == amqp.Persistent &&
			p.ContentType == "application/json" &&
			p.Type == "memberships.removed" &&
			p.MessageId == "evt-1" &&
			string(p.Body) == `{"a":1}`
	})).Return(nil)
	tr, _ := connected(t, ch)

	err := tr.Publish(context.Background(), "events", []byte(`{"a":1}`), WithType("memberships.removed"), WithMessageID("evt-1"))
	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestPublish_AfterMismatch_ReopensChannelAndRetrySucceeds(t *testing.T) {
	dead := &mockChannel{}
	dead.On("QueueDeclare", "invites", true, amqp.Table(nil)).
		Return(&amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg"})
	dead.On("PublishWithContext", "", "invites", mock.Anything).Return(amqp.ErrClosed).Once()

	fresh := &mockChannel{}
	fresh.On("PublishWithContext", "", "invites", mock.Anything).Return(nil).Once()

	tr, conn := connected(t, dead, fresh)

	assert.True(t, errors.Is(tr.AssertDurableQueue("invites"), ErrQueueConfigMismatch))

	err := tr.Publish(context.Background(), "invites", []byte(`{}`))
	assert.True(t, errors.Is(err, ErrQueueConfigMismatch))
	assert.Equal(t, 2, conn.opened)

	require.NoError(t, tr.Publish(context.Background(), "invites", []byte(`{}`)))
	dead.AssertNumberOfCalls(t, "PublishWithContext", 1)
	fresh.AssertNumberOfCalls(t, "PublishWithContext", 1)
	fresh.AssertExpectations(t)
}

func TestPublish_ChannelError_Propagates(t *testing.T) {
	ch := &mockChannel{}
	ch.On("PublishWithContext", "", "events", mock.Anything).Return(amqp.ErrClosed)
	tr, _ := connected(t, ch)

	err := tr.Publish(context.Background(), "events", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, amqp.ErrClosed))
	assert.False(t, errors.Is(err, ErrQueueConfigMismatch))
}

// --- prefetch / consume / close ---

func TestSetPrefetch_AppliesToConsumerChannels(t *testing.T) {
	control := &mockChannel{}
	running := &mockChannel{}
	running.On("Consume", "events", false).Return((<-chan amqp.Delivery)(make(chan amqp.Delivery)), nil)
	running.On("Qos", 10).Return(nil).Once()
	later := &mockChannel{}
	later.On("Qos", 10).Return(nil).Once()
	later.On("Consume", "invites", false).Return((<-chan amqp.Delivery)(make(chan amqp.Delivery)), nil)
	tr, _ := connected(t, control, running, later)

	_, err := tr.Consume("events", "notifier")
	require.NoError(t, err)
	require.NoError(t, tr.SetPrefetch(10))
	_, err = tr.Consume("invites", "notifier")
	require.NoError(t, err)

	running.AssertExpectations(t)
	later.AssertExpectations(t)
	control.AssertNotCalled(t, "Qos", mock.Anything)
}

func TestConsume_UsesManualAckOnOwnChannel(t *testing.T) {
	deliveries := make(chan amqp.Delivery)
	control := &mockChannel{}
	consumer := &mockChannel{}
	consumer.On("Qos", DefaultPrefetch).Return(nil).Once()
	consumer.On("Consume", "events", false).Return((<-chan amqp.Delivery)(deliveries), nil)
	tr, conn := connected(t, control, consumer)
	require.NoError(t, tr.SetPrefetch(DefaultPrefetch))

	out, err := tr.Consume("events", "notifier")
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, 2, conn.opened)
	consumer.AssertExpectations(t)
	control.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
}

func TestConsume_ErrorClosesConsumerChannel(t *testing.T) {
	consumer := &mockChannel{}
	consumer.On("Consume", "events", false).Return(nil, amqp.ErrClosed)
	consumer.On("Close").Return(nil).Once()
	tr, _ := connected(t, &mockChannel{}, consumer)

	_, err := tr.Consume("events", "notifier")
	assert.ErrorIs(t, err, amqp.ErrClosed)
	consumer.AssertExpectations(t)
}

func TestQueueMismatch_DoesNotCloseDeliveries(t *testing.T) {
	control := &brokerChannel{mismatch: map[string]bool{"invites": true}}
	consumer := &brokerChannel{}
	reopened := &brokerChannel{}
	tr, _ := connected(t, control, consumer, reopened)

	deliveries, err := tr.Consume("events", "notifier")
	require.NoError(t, err)

	assert.ErrorIs(t, tr.AssertDurableQueue("invites"), ErrQueueConfigMismatch)
	assert.ErrorIs(t, tr.Publish(context.Background(), "invites", []byte(`{}`)), ErrQueueConfigMismatch)
	require.NoError(t, tr.Publish(context.Background(), "invites", []byte(`{}`)))

	select {
	case _, ok := <-deliveries:
		t.Fatalf("delivery stream touched by control channel 406 (open=%v)", ok)
	default:
	}
	assert.True(t, control.closed)
	assert.False(t, consumer.closed)
}

func TestAssertAfterMismatch_UsesReopenedChannel(t *testing.T) {
	dead := &mockChannel{}
	dead.On("QueueDeclare", "invites", true, amqp.Table(nil)).
		Return(&amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg"})

	fresh := &mockChannel{}
	fresh.On("QueueDeclare", "events", true, mock.Anything).Return(nil)
	fresh.On("QueueDeclare", "dlq.events", true, amqp.Table(nil)).Return(nil)

	tr, conn := connected(t, dead, fresh)

	assert.True(t, errors.Is(tr.AssertDurableQueue("invites"), ErrQueueConfigMismatch))
	require.NoError(t, tr.AssertEventQueue("events", "dlq.events"))

	assert.Equal(t, 2, conn.opened)
	fresh.AssertExpectations(t)
}

func TestClose_ConsumersThenChannelThenConnection_IgnoresErrors(t *testing.T) {
	var order []string
	control := &mockChannel{}
	control.On("Close").Run(func(mock.Arguments) { order = append(order, "control") }).Return(errors.New("already closed"))
	consumer := &mockChannel{}
	consumer.On("Consume", "events", false).Return((<-chan amqp.Delivery)(make(chan amqp.Delivery)), nil)
	consumer.On("Close").Run(func(mock.Arguments) { order = append(order, "consumer") }).Return(errors.New("already closed"))
	tr, conn := connected(t, control, consumer)
	conn.closeErr = errors.New("already closed")
	_, err := tr.Consume("events", "notifier")
	require.NoError(t, err)

	assert.NotPanics(t, tr.Close)
	assert.Equal(t, []string{"consumer", "control"}, order)
	assert.True(t, conn.closed)
	assert.True(t, errors.Is(tr.Publish(context.Background(), "events", nil), ErrChannelNotInitialized))
}
