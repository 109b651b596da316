package events

import (
	"context"
	"log/slog"

	"github.com/go-collab-notify/internal/domain"
)

type inviteEmitter interface {
	EmitInviteCreated(ctx context.Context, payload map[string]any) error
}

type eventEmitter interface {
	EmitEvent(ctx context.Context, name string, payload map[string]any) error
}

// Dispatcher is the single entry point use cases call to publish domain
// events. Only events in the routing table leave the process; every other
// name is dropped without error.
type Dispatcher struct {
	routes map[string]func(ctx context.Context, payload map[string]any) error
}

func NewDispatcher(invites inviteEmitter, events eventEmitter) *Dispatcher {
	toEvents := func(name string) func(context.Context, map[string]any) error {
		return func(ctx context.Context, payload map[string]any) error {
			return events.EmitEvent(ctx, name, payload)
		}
	}
	return &Dispatcher{
		routes: map[string]func(context.Context, map[string]any) error{
			domain.EventInvitesCreated:         invites.EmitInviteCreated,
			domain.EventMembershipsRemoved:     toEvents(domain.EventMembershipsRemoved),
			domain.EventMembershipsRoleUpdated: toEvents(domain.EventMembershipsRoleUpdated),
		},
	}
}

// Routes reports whether name is routed to a producer.
func (d *Dispatcher) Routes(name string) bool {
	_, ok := d.routes[name]
	return ok
}

// Publish hands ev to its producer. The returned error is informational:
// callers must not fail their own business operation on it.
func (d *Dispatcher) Publish(ctx context.Context, ev domain.Event) error {
	route, ok := d.routes[ev.Name]
	if !ok {
		slog.Debug("domain event not routed", "event", ev.Name)
		return nil
	}
	if err := route(ctx, ev.Payload); err != nil {
		slog.Error("could not publish domain event", "event", ev.Name, "err", err)
		return err
	}
	return nil
}
