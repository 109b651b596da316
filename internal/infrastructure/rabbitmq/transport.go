package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultConnectAttempts = 10
	DefaultConnectDelay    = 3000 * time.Millisecond
	DefaultPrefetch        = 50
)

// Transport owns one broker connection and a control channel used for queue
// declarations and publishes. Every consumer gets a channel of its own, so a
// 406 that closes the control channel never closes a delivery stream.
// It is created once per process and handed to producers and consumers at
// construction time.
//
// The mutex only guards the handles themselves; publishes run on the channel
// without an application-level lock.
type Transport struct {
	mu        sync.RWMutex
	conn      Connection
	ch        Channel
	consumers []Channel
	stale     bool // broker closed ch after a precondition failure
	prefetch  int

	dial     Dialer
	attempts int
	delay    time.Duration
}

// Option configures a Transport.
type Option func(*Transport)

// WithDialer replaces the AMQP dialer (tests, alternative brokers).
func WithDialer(d Dialer) Option {
	return func(t *Transport) { t.dial = d }
}

// WithRetry sets the number of connection attempts and the fixed delay between them.
// The delay is constant; there is no backoff growth or jitter.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(t *Transport) {
		if attempts > 0 {
			t.attempts = attempts
		}
		if delay >= 0 {
			t.delay = delay
		}
	}
}

func New(opts ...Option) *Transport {
	t := &Transport{
		dial:     DialAMQP,
		attempts: DefaultConnectAttempts,
		delay:    DefaultConnectDelay,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Connect opens the connection and channel, retrying with a fixed delay.
// Exhausting every attempt returns ErrBrokerConnectionFailed.
func (t *Transport) Connect(ctx context.Context, url string) error {
	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		conn, ch, err := t.open(url)
		if err == nil {
			t.mu.Lock()
			t.conn, t.ch, t.stale = conn, ch, false
			t.mu.Unlock()
			slog.Info("connected to broker", "attempt", attempt)
			return nil
		}
		lastErr = err
		slog.Warn("broker connection attempt failed", "attempt", attempt, "max_attempts", t.attempts, "err", err)
		if attempt == t.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrBrokerConnectionFailed, ctx.Err())
		case <-time.After(t.delay):
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrBrokerConnectionFailed, t.attempts, lastErr)
}

func (t *Transport) open(url string) (Connection, Channel, error) {
	conn, err := t.dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

func (t *Transport) channel() (Channel, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.ch == nil {
		return nil, ErrChannelNotInitialized
	}
	return t.ch, nil
}

// AssertDurableQueue declares a queue that survives a broker restart.
// Redeclaring with the same arguments is a no-op.
func (t *Transport) AssertDurableQueue(name string) error {
	t.refresh()
	ch, err := t.channel()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return t.classify(fmt.Sprintf("assert queue %q", name), err)
	}
	return nil
}

// AssertEventQueue declares name with dead-lettering to dlqName, then dlqName
// itself as a plain durable queue. Rejected messages reach dlqName unchanged.
func (t *Transport) AssertEventQueue(name, dlqName string) error {
	t.refresh()
	ch, err := t.channel()
	if err != nil {
		return err
	}
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqName,
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return t.classify(fmt.Sprintf("assert event queue %q", name), err)
	}
	return t.AssertDurableQueue(dlqName)
}

// PublishOption customizes an outgoing message.
type PublishOption func(*amqp.Publishing)

// WithType sets the AMQP type property, used as the event name.
func WithType(name string) PublishOption {
	return func(p *amqp.Publishing) { p.Type = name }
}

// WithMessageID sets the AMQP message-id property.
func WithMessageID(id string) PublishOption {
	return func(p *amqp.Publishing) { p.MessageId = id }
}

// Publish sends a persistent message to queue through the default exchange.
func (t *Transport) Publish(ctx context.Context, queue string, body []byte, opts ...PublishOption) error {
	ch, err := t.channel()
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	for _, o := range opts {
		o(&msg)
	}
	err = ch.PublishWithContext(ctx, "", queue, false, false, msg)
	if err == nil {
		return nil
	}
	if t.takeStale() {
		t.reopenChannel()
		return fmt.Errorf("%w: publish to %q on channel closed by broker: %v", ErrQueueConfigMismatch, queue, err)
	}
	return t.classify(fmt.Sprintf("publish to %q", queue), err)
}

// SetPrefetch bounds the number of unacknowledged deliveries per consumer.
// It applies to running consumers and to every consumer started later.
func (t *Transport) SetPrefetch(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrChannelNotInitialized
	}
	for _, ch := range t.consumers {
		if err := ch.Qos(n, 0, false); err != nil {
			return fmt.Errorf("set prefetch %d: %w", n, err)
		}
	}
	t.prefetch = n
	return nil
}

// Consume starts a manual-ack consumer on queue, on a channel of its own
// carrying the configured prefetch.
func (t *Transport) Consume(queue, consumer string) (<-chan amqp.Delivery, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrChannelNotInitialized
	}
	ch, err := t.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel for %q: %w", queue, err)
	}
	if t.prefetch > 0 {
		if err := ch.Qos(t.prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("set prefetch %d on %q: %w", t.prefetch, queue, err)
		}
	}
	deliveries, err := ch.Consume(queue, consumer, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, wrap(fmt.Sprintf("consume %q", queue), err)
	}
	t.consumers = append(t.consumers, ch)
	return deliveries, nil
}

// Close shuts the consumer channels and the control channel down before the
// connection. Failures are logged, never returned.
func (t *Transport) Close() {
	t.mu.Lock()
	ch, conn, consumers := t.ch, t.conn, t.consumers
	t.ch, t.conn, t.consumers = nil, nil, nil
	t.mu.Unlock()

	for _, c := range consumers {
		if err := c.Close(); err != nil {
			slog.Warn("could not close consumer channel", "err", err)
		}
	}
	if ch != nil {
		if err := ch.Close(); err != nil {
			slog.Warn("could not close broker channel", "err", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			slog.Warn("could not close broker connection", "err", err)
		}
	}
}

// classify maps a 406 on the control channel onto ErrQueueConfigMismatch. The
// broker closes the channel after a 406, so the transport remembers it is stale.
func (t *Transport) classify(op string, err error) error {
	if isPreconditionFailed(err) {
		t.mu.Lock()
		t.stale = true
		t.mu.Unlock()
	}
	return wrap(op, err)
}

func wrap(op string, err error) error {
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed {
		return fmt.Errorf("%s: %w: %s", op, ErrQueueConfigMismatch, amqpErr.Reason)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isPreconditionFailed(err error) bool {
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed
}

func (t *Transport) takeStale() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	stale := t.stale
	t.stale = false
	return stale
}

// refresh replaces a control channel the broker closed after a 406. Publish
// does not call it: its failed attempt is what reports the mismatch to the
// producer.
func (t *Transport) refresh() {
	if t.takeStale() {
		t.reopenChannel()
	}
}

func (t *Transport) reopenChannel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return
	}
	ch, err := t.conn.Channel()
	if err != nil {
		slog.Warn("could not reopen broker channel", "err", err)
		return
	}
	t.ch = ch
	slog.Info("reopened broker channel")
}
