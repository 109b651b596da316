package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-collab-notify/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
	ErrMissingEventName   = errors.New("message carries no event name")
	ErrDeliveriesClosed   = errors.New("delivery channel closed")
)

// Source opens a manual-ack delivery stream on a queue.
type Source interface {
	Consume(queue, consumer string) (<-chan amqp.Delivery, error)
}

// Materializer handles one event. It never fails.
type Materializer interface {
	CreateNotificationForEvent(ctx context.Context, eventName string, payload map[string]any)
}

// Consumer feeds one queue into the materializer, one delivery at a time.
type Consumer struct {
	source Source
	queue  string
	tag    string
	m      Materializer
}

func NewConsumer(source Source, queue string, m Materializer) *Consumer {
	return &Consumer{source: source, queue: queue, tag: "notifier-" + queue, m: m}
}

// Run consumes until ctx is cancelled (returns nil) or the broker closes the
// delivery channel (returns ErrDeliveriesClosed).
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(c.queue, c.tag)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	slog.Info("consuming queue", "queue", c.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: %s", ErrDeliveriesClosed, c.queue)
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks after materialization. Bodies that cannot be decoded are
// rejected without requeue so the broker dead-letters them.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	name, payload, err := Decode(d.Body, d.Type)
	if err != nil {
		slog.Warn("rejecting undecodable message", "queue", c.queue, "message_id", d.MessageId, "err", err)
		if err := d.Nack(false, false); err != nil {
			slog.Error("nack failed", "queue", c.queue, "err", err)
		}
		return
	}

	c.m.CreateNotificationForEvent(ctx, domain.MaterializerEventName(name), payload)

	if err := d.Ack(false); err != nil {
		slog.Error("ack failed", "queue", c.queue, "event", name, "err", err)
	}
}

// Decode reads a versioned envelope, or a legacy bare payload whose name
// comes from the AMQP type property. A body is an envelope when it carries
// "version" together with "name" or "payload". The envelope's eventId and
// occurredAt become payload defaults. Numbers are kept as json.Number.
func Decode(body []byte, amqpType string) (string, map[string]any, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", nil, fmt.Errorf("decode message: %w", err)
	}

	rawVersion, hasVersion := fields["version"]
	_, hasName := fields["name"]
	_, hasPayload := fields["payload"]
	if !hasVersion || !(hasName || hasPayload) {
		if amqpType == "" {
			return "", nil, ErrMissingEventName
		}
		payload, err := decodePayload(body)
		return amqpType, payload, err
	}

	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != domain.EnvelopeVersion {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, rawVersion)
	}
	if env.Name == "" {
		env.Name = amqpType
	}
	if env.Name == "" {
		return "", nil, ErrMissingEventName
	}
	payload, err := decodePayload(env.Payload)
	if err != nil {
		return "", nil, err
	}
	if env.EventID != "" && !carries(payload, "eventId") {
		payload["eventId"] = env.EventID
	}
	if !env.OccurredAt.IsZero() && !carries(payload, "timestamp") && !carries(payload, "occurredAt") {
		payload["occurredAt"] = env.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	return env.Name, payload, nil
}

// carries reports whether payload sets key at the top level or under "meta".
func carries(payload map[string]any, key string) bool {
	if v, ok := payload[key]; ok && v != nil && v != "" {
		return true
	}
	meta, _ := payload["meta"].(map[string]any)
	v, ok := meta[key]
	return ok && v != nil && v != ""
}

func decodePayload(raw []byte) (map[string]any, error) {
	payload := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return payload, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
