package notification

import (
	"context"
	"log/slog"

	"github.com/go-collab-notify/internal/application/message"
	"github.com/go-collab-notify/internal/domain"
)

func (m *Materializer) handleFriendRequestSent(ctx context.Context, p payload) error {
	in := parseFriendRequestSent(p)
	if in.FriendshipID == "" && in.Sender.ID != "" && in.Receiver.ID != "" {
		slog.Error("friend request event without friendshipId", "sender_id", in.Sender.ID, "receiver_id", in.Receiver.ID)
	}
	return m.notifyFriend(ctx, domain.EventFriendRequestSent, message.CodeFriendRequestSent, in)
}

func (m *Materializer) handleFriendRequestAccepted(ctx context.Context, p payload) error {
	return m.notifyFriend(ctx, domain.EventFriendRequestAccepted, message.CodeFriendRequestAccepted, parseFriendRequestAnswered(p))
}

func (m *Materializer) handleFriendRequestRejected(ctx context.Context, p payload) error {
	return m.notifyFriend(ctx, domain.EventFriendRequestRejected, message.CodeFriendRequestRejected, parseFriendRequestAnswered(p))
}

func (m *Materializer) handleFriendRemoved(ctx context.Context, p payload) error {
	return m.notifyFriend(ctx, domain.EventFriendRemoved, message.CodeFriendRemoved, parseFriendRemoved(p))
}

// notifyFriend requires both users to resolve; friend notifications carry no company.
func (m *Materializer) notifyFriend(ctx context.Context, event, code string, in friendInput) error {
	if skip(event, in) {
		return nil
	}
	sender, ok, err := m.resolveParty(ctx, party(in.Sender))
	if err != nil || !ok {
		if !ok && err == nil {
			slog.Debug("friend event sender not found", "event", event, "user_id", in.Sender.ID)
		}
		return err
	}
	receiver, ok, err := m.resolveParty(ctx, party(in.Receiver))
	if err != nil || !ok {
		if !ok && err == nil {
			slog.Debug("friend event receiver not found", "event", event, "user_id", in.Receiver.ID)
		}
		return err
	}

	return m.persist(ctx, draft{
		event:        event,
		code:         code,
		channel:      domain.ChannelFriend,
		senderID:     sender.ID,
		recipientID:  receiver.ID,
		emails:       emailsOf(receiver),
		sender:       &sender,
		envelope:     in.envelopeFields,
		friendshipID: in.FriendshipID,
		descriptor: message.Descriptor{
			Sender:      sender.person(),
			Recipient:   receiver.person(),
			FriendEmail: sender.Email,
		},
	})
}
