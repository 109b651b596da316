package events

import (
	"context"
	"errors"
	"testing"

	"github.com/go-collab-notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockInviteEmitter struct{ mock.Mock }

func (m *mockInviteEmitter) EmitInviteCreated(ctx context.Context, payload map[string]any) error {
	return m.Called(payload).Error(0)
}

type mockEventEmitter struct{ mock.Mock }

func (m *mockEventEmitter) EmitEvent(ctx context.Context, name string, payload map[string]any) error {
	return m.Called(name, payload).Error(0)
}

func TestPublish_InvitesCreated_RoutesToInviteProducer(t *testing.T) {
	inv, ev := &mockInviteEmitter{}, &mockEventEmitter{}
	payload := map[string]any{"inviteId": "i1"}
	inv.On("EmitInviteCreated", payload).Return(nil).Once()

	d := NewDispatcher(inv, ev)
	assert.NoError(t, d.Publish(context.Background(), domain.Event{Name: domain.EventInvitesCreated, Payload: payload}))

	inv.AssertExpectations(t)
	ev.AssertNotCalled(t, "EmitEvent", mock.Anything, mock.Anything)
}

func TestPublish_MembershipEvents_RouteToEventsProducer(t *testing.T) {
	for _, name := range []string{domain.EventMembershipsRemoved, domain.EventMembershipsRoleUpdated} {
		t.Run(name, func(t *testing.T) {
			inv, ev := &mockInviteEmitter{}, &mockEventEmitter{}
			payload := map[string]any{"userId": "u1"}
			ev.On("EmitEvent", name, payload).Return(nil).Once()

			d := NewDispatcher(inv, ev)
			assert.NoError(t, d.Publish(context.Background(), domain.Event{Name: name, Payload: payload}))
			ev.AssertExpectations(t)
		})
	}
}

func TestPublish_UnknownEvent_IsDropped(t *testing.T) {
	inv, ev := &mockInviteEmitter{}, &mockEventEmitter{}
	d := NewDispatcher(inv, ev)

	assert.NoError(t, d.Publish(context.Background(), domain.Event{Name: "friend.request.sent"}))
	assert.False(t, d.Routes("friend.request.sent"))
	assert.True(t, d.Routes(domain.EventInvitesCreated))
	inv.AssertNotCalled(t, "EmitInviteCreated", mock.Anything)
	ev.AssertNotCalled(t, "EmitEvent", mock.Anything, mock.Anything)
}

func TestPublish_ProducerError_IsReturned(t *testing.T) {
	inv, ev := &mockInviteEmitter{}, &mockEventEmitter{}
	boom := errors.New("channel closed")
	ev.On("EmitEvent", domain.EventMembershipsRemoved, mock.Anything).Return(boom)

	d := NewDispatcher(inv, ev)
	err := d.Publish(context.Background(), domain.Event{Name: domain.EventMembershipsRemoved})
	assert.ErrorIs(t, err, boom)
}
