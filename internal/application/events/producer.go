package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-collab-notify/internal/domain"
	"github.com/go-collab-notify/internal/infrastructure/rabbitmq"
	"github.com/go-collab-notify/internal/pkg/id"
)

// Publisher is the broker surface producers need. *rabbitmq.Transport satisfies it.
type Publisher interface {
	AssertDurableQueue(name string) error
	AssertEventQueue(name, dlqName string) error
	Publish(ctx context.Context, queue string, body []byte, opts ...rabbitmq.PublishOption) error
}

// queueProducer publishes envelopes to one queue. An empty dlq marks a legacy
// queue declared without dead-lettering.
type queueProducer struct {
	pub   Publisher
	queue string
	dlq   string
}

func (p queueProducer) assert() error {
	if p.dlq == "" {
		return p.pub.AssertDurableQueue(p.queue)
	}
	return p.pub.AssertEventQueue(p.queue, p.dlq)
}

// send asserts the queue and publishes. A queue config mismatch is not
// fatal: the message is published anyway, and a publish that still reports
// the mismatch is retried exactly once without reasserting. If the retry
// fails too the event is logged and dropped.
func (p queueProducer) send(ctx context.Context, name string, payload map[string]any) error {
	body, eventID, err := Encode(name, payload)
	if err != nil {
		return err
	}
	opts := []rabbitmq.PublishOption{rabbitmq.WithType(name), rabbitmq.WithMessageID(eventID)}

	err = p.assert()
	if err != nil && !errors.Is(err, rabbitmq.ErrQueueConfigMismatch) {
		return fmt.Errorf("assert queue %s: %w", p.queue, err)
	}
	if err != nil {
		slog.Warn("queue config mismatch, publishing anyway", "queue", p.queue, "event", name, "err", err)
	}

	err = p.pub.Publish(ctx, p.queue, body, opts...)
	if err == nil {
		return nil
	}
	if !errors.Is(err, rabbitmq.ErrQueueConfigMismatch) {
		return err
	}

	slog.Warn("retrying publish without reasserting queue", "queue", p.queue, "event", name, "err", err)
	if err := p.pub.Publish(ctx, p.queue, body, opts...); err != nil {
		slog.Error("event dropped after queue config mismatch", "queue", p.queue, "event", name, "event_id", eventID, "err", err)
	}
	return nil
}

// Encode normalizes payload and wraps it in a versioned envelope. It returns
// the JSON body and the generated event id.
func Encode(name string, payload map[string]any) ([]byte, string, error) {
	raw, err := json.Marshal(Normalize(payload))
	if err != nil {
		return nil, "", fmt.Errorf("marshal %s payload: %w", name, err)
	}
	env := domain.Envelope{
		Version:    domain.EnvelopeVersion,
		EventID:    id.New(),
		Name:       name,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, "", fmt.Errorf("marshal %s envelope: %w", name, err)
	}
	return body, env.EventID, nil
}

// InviteProducer publishes invite events.
type InviteProducer struct {
	created   queueProducer
	lifecycle queueProducer
}

// NewInviteProducer binds the legacy invite-created queue and the invite
// lifecycle event queue (with its DLQ).
func NewInviteProducer(pub Publisher, createdQueue, lifecycleQueue, lifecycleDLQ string) *InviteProducer {
	return &InviteProducer{
		created:   queueProducer{pub: pub, queue: createdQueue},
		lifecycle: queueProducer{pub: pub, queue: lifecycleQueue, dlq: lifecycleDLQ},
	}
}

// EmitInviteCreated publishes an invites.created event to the invite-created queue.
func (p *InviteProducer) EmitInviteCreated(ctx context.Context, payload map[string]any) error {
	return p.created.send(ctx, domain.EventInvitesCreated, payload)
}

// EmitInviteEvent publishes any other invite lifecycle event.
func (p *InviteProducer) EmitInviteEvent(ctx context.Context, name string, payload map[string]any) error {
	return p.lifecycle.send(ctx, name, payload)
}

// EventsProducer publishes generic and membership events.
type EventsProducer struct {
	events  queueProducer
	members queueProducer
}

func NewEventsProducer(pub Publisher, eventsQueue, eventsDLQ, membersQueue, membersDLQ string) *EventsProducer {
	return &EventsProducer{
		events:  queueProducer{pub: pub, queue: eventsQueue, dlq: eventsDLQ},
		members: queueProducer{pub: pub, queue: membersQueue, dlq: membersDLQ},
	}
}

// EmitEvent publishes to the generic events queue.
func (p *EventsProducer) EmitEvent(ctx context.Context, name string, payload map[string]any) error {
	return p.events.send(ctx, name, payload)
}

// EmitMemberEvent publishes to the membership events queue.
func (p *EventsProducer) EmitMemberEvent(ctx context.Context, name string, payload map[string]any) error {
	return p.members.send(ctx, name, payload)
}
