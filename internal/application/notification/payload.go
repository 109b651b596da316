package notification

import (
	"encoding/json"
	"strconv"
	"strings"
)

// payload is a raw event body as decoded from the wire. Callers emit the same
// event with different shapes (nested objects vs bare ids), so every field is
// looked up through a list of alternative dotted paths.
type payload map[string]any

// lookup walks a dotted path through nested maps.
func (p payload) lookup(path string) (any, bool) {
	var cur any = map[string]any(p)
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// str returns the first non-empty scalar found at any of paths, as a string.
func (p payload) str(paths ...string) string {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		if s := scalar(v); s != "" {
			return s
		}
	}
	return ""
}

// strs returns the string elements of the first list found at any of paths.
func (p payload) strs(paths ...string) []string {
	for _, path := range paths {
		v, ok := p.lookup(path)
		if !ok {
			continue
		}
		switch list := v.(type) {
		case []string:
			return list
		case []any:
			out := make([]string, 0, len(list))
			for _, e := range list {
				if s := scalar(e); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return nil
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}

// party is a user reference as carried by a payload, possibly enriched.
type party struct {
	ID    string
	Name  string
	Email string
}

// requiredParty is a party whose id must be present for the handler to act.
type requiredParty struct {
	ID    string `validate:"required"`
	Name  string
	Email string
}

// party reads the nested object at prefix, with idPaths as fallbacks for the id.
func (p payload) party(prefix string, idPaths ...string) party {
	return party{
		ID:    p.str(append([]string{prefix + ".id"}, idPaths...)...),
		Name:  p.str(prefix+".name", prefix+".fullName"),
		Email: p.str(prefix+".email"),
	}
}

func (p payload) requiredParty(prefix string, idPaths ...string) requiredParty {
	return requiredParty(p.party(prefix, idPaths...))
}

// envelopeFields holds fields any event may carry.
type envelopeFields struct {
	EventID   string
	Timestamp string
}

func (p payload) envelope() envelopeFields {
	return envelopeFields{
		EventID:   p.str("eventId", "meta.eventId"),
		Timestamp: p.str("timestamp", "occurredAt", "meta.timestamp"),
	}
}

// --- canonical inputs, one per event kind ---

type notificationSentInput struct {
	envelopeFields
	NotificationID   string
	RecipientUserID  string `validate:"required_without=CompanyID"`
	CompanyID        string `validate:"required_without=RecipientUserID"`
	Sender           party
	Title            string
	Message          string
	RecipientsEmails []string
}

func parseNotificationSent(p payload) notificationSentInput {
	return notificationSentInput{
		envelopeFields:   p.envelope(),
		NotificationID:   p.str("notificationId", "notification.id"),
		RecipientUserID:  p.str("recipientUserId", "recipient.id", "receiver.id"),
		CompanyID:        p.str("companyId", "company.id"),
		Sender:           p.party("sender", "senderUserId", "senderId"),
		Title:            p.str("title", "subject", "notification.title"),
		Message:          p.str("message", "body", "notification.body"),
		RecipientsEmails: p.strs("recipientsEmails", "recipientEmails"),
	}
}

type friendInput struct {
	envelopeFields
	Sender       requiredParty
	Receiver     requiredParty
	FriendshipID string
}

func parseFriendRequestSent(p payload) friendInput {
	return friendInput{
		envelopeFields: p.envelope(),
		Sender:         p.requiredParty("sender", "requesterId", "senderId", "userId"),
		Receiver:       p.requiredParty("receiver", "addresseeId", "receiverId"),
		FriendshipID:   p.str("friendshipId", "friendship.id"),
	}
}

// parseFriendRequestAnswered covers accepted and rejected: the original
// addressee answers, so it is the sender of the notice.
func parseFriendRequestAnswered(p payload) friendInput {
	return friendInput{
		envelopeFields: p.envelope(),
		Sender:         p.requiredParty("sender", "addresseeId", "userId"),
		Receiver:       p.requiredParty("receiver", "requesterId"),
		FriendshipID:   p.str("friendshipId", "friendship.id"),
	}
}

// parseFriendRemoved derives the receiver by elimination from the
// requester/addressee pair when it is not named directly.
func parseFriendRemoved(p payload) friendInput {
	in := friendInput{
		envelopeFields: p.envelope(),
		Sender:         p.requiredParty("sender", "userId", "initiatorId", "removedById"),
		Receiver:       p.requiredParty("receiver", "friendId", "targetUserId"),
		FriendshipID:   p.str("friendshipId", "friendship.id"),
	}
	if in.Receiver.ID == "" && in.Sender.ID != "" {
		requester, addressee := p.str("requesterId"), p.str("addresseeId")
		switch in.Sender.ID {
		case requester:
			in.Receiver.ID = addressee
		case addressee:
			in.Receiver.ID = requester
		}
	}
	return in
}

type inviteCreatedInput struct {
	envelopeFields
	InviteID  string `validate:"required"`
	CompanyID string `validate:"required"`
	Email     string `validate:"required"`
	Sender    party
	Token     string
	Role      string
}

func parseInviteCreated(p payload) inviteCreatedInput {
	return inviteCreatedInput{
		envelopeFields: p.envelope(),
		InviteID:       p.str("inviteId", "invite.id"),
		CompanyID:      p.str("companyId", "company.id", "invite.companyId"),
		Email:          strings.ToLower(p.str("invitedEmail", "email", "invite.email", "recipientEmail")),
		Sender:         p.party("sender", "inviterId", "invitedById", "userId"),
		Token:          p.str("token", "invite.token", "inviteToken"),
		Role:           p.str("role", "invite.role"),
	}
}

type inviteAcceptedInput struct {
	envelopeFields
	Sender    requiredParty
	Receiver  requiredParty
	CompanyID string `validate:"required"`
	InviteID  string `validate:"required"`
	Email     string
}

// The invitee accepts, so the invitee is the sender and the inviter the receiver.
func parseInviteAccepted(p payload) inviteAcceptedInput {
	return inviteAcceptedInput{
		envelopeFields: p.envelope(),
		Sender:         p.requiredParty("sender", "userId", "acceptedById", "inviteeId"),
		Receiver:       p.requiredParty("receiver", "inviterId", "invitedById"),
		CompanyID:      p.str("companyId", "company.id", "invite.companyId"),
		InviteID:       p.str("inviteId", "invite.id"),
		Email:          p.str("invitedEmail", "email", "invite.email"),
	}
}

type membershipJoinedInput struct {
	envelopeFields
	User      requiredParty
	CompanyID string `validate:"required"`
	Role      string
}

func parseMembershipJoined(p payload) membershipJoinedInput {
	return membershipJoinedInput{
		envelopeFields: p.envelope(),
		User:           p.requiredParty("user", "userId", "sender.id", "membership.userId"),
		CompanyID:      p.str("companyId", "company.id", "membership.companyId"),
		Role:           p.str("role", "membership.role"),
	}
}

type membershipRemovedInput struct {
	envelopeFields
	Sender    requiredParty
	Receiver  requiredParty
	CompanyID string `validate:"required"`
}

func parseMembershipRemoved(p payload) membershipRemovedInput {
	return membershipRemovedInput{
		envelopeFields: p.envelope(),
		Sender:         p.requiredParty("sender", "initiatorId", "removedById", "actorId"),
		Receiver:       p.requiredParty("receiver", "userId", "targetUserId", "removedUserId"),
		CompanyID:      p.str("companyId", "company.id", "membership.companyId"),
	}
}

type roleUpdatedInput struct {
	envelopeFields
	Sender    party
	Receiver  requiredParty
	CompanyID string `validate:"required"`
	NewRole   string
	OldRole   string
}

func parseRoleUpdated(p payload) roleUpdatedInput {
	return roleUpdatedInput{
		envelopeFields: p.envelope(),
		Sender:         p.party("sender", "initiatorId", "updatedById", "changedById", "actorId"),
		Receiver:       p.requiredParty("receiver", "userId", "targetUserId"),
		CompanyID:      p.str("companyId", "company.id", "membership.companyId"),
		NewRole:        p.str("newRole", "role"),
		OldRole:        p.str("oldRole", "previousRole"),
	}
}

type companyCreatedInput struct {
	envelopeFields
	Creator   requiredParty
	CompanyID string `validate:"required"`
}

func parseCompanyCreated(p payload) companyCreatedInput {
	return companyCreatedInput{
		envelopeFields: p.envelope(),
		Creator:        p.requiredParty("sender", "ownerId", "createdById", "userId"),
		CompanyID:      p.str("company.id", "companyId"),
	}
}
