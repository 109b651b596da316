package domain

import (
	"encoding/json"
	"time"
)

// Event names published by application use cases through the dispatcher.
const (
	EventInvitesCreated         = "invites.created"
	EventMembershipsRemoved     = "memberships.removed"
	EventMembershipsRoleUpdated = "memberships.role.updated"
)

// Event names understood by the notification materializer.
const (
	EventNotificationSent      = "notification.sent"
	EventFriendRequestSent     = "friend.request.sent"
	EventFriendRequestAccepted = "friend.request.accepted"
	EventFriendRequestRejected = "friend.request.rejected"
	EventFriendRemoved         = "friend.removed"
	EventInviteCreated         = "invite.created"
	EventInviteAccepted        = "invite.accepted"
	EventInviteRejected        = "invite.rejected"
	EventMembershipJoined      = "membership.joined"
	EventMembershipRemoved     = "membership.removed"
	EventMembershipRoleUpdated = "membership.role.updated"
	EventCompanyCreated        = "company.created"
	EventCompanyUpdated        = "company.updated"
	EventCompanyDeleted        = "company.deleted"
)

// transportToMaterializer maps dispatcher event names onto the names the
// materializer handles. Names not listed pass through unchanged.
var transportToMaterializer = map[string]string{
	EventInvitesCreated:         EventInviteCreated,
	EventMembershipsRemoved:     EventMembershipRemoved,
	EventMembershipsRoleUpdated: EventMembershipRoleUpdated,
}

// MaterializerEventName returns the materializer event name for a name seen on the wire.
func MaterializerEventName(name string) string {
	if n, ok := transportToMaterializer[name]; ok {
		return n
	}
	return name
}

// Event is a named fact published by a use case. It is never persisted.
type Event struct {
	Name    string         `json:"name" validate:"required"`
	Payload map[string]any `json:"payload"`
}

// EnvelopeVersion is the current wire envelope version.
const EnvelopeVersion = 1

// Envelope is the versioned message body written to the broker.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}
