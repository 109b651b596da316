package notification

import (
	"context"

	"github.com/go-collab-notify/internal/application/message"
	"github.com/go-collab-notify/internal/domain"
)

// handleMembershipJoined is a self-notification: the joining user is both
// sender and recipient.
func (m *Materializer) handleMembershipJoined(ctx context.Context, p payload) error {
	in := parseMembershipJoined(p)
	if skip(domain.EventMembershipJoined, in) {
		return nil
	}
	user, _, err := m.resolveParty(ctx, party(in.User))
	if err != nil {
		return err
	}
	info := m.resolveCompanyInfo(ctx, in.CompanyID)
	return m.persist(ctx, draft{
		event:       domain.EventMembershipJoined,
		code:        message.CodeUserJoinedCompany,
		channel:     domain.ChannelCompany,
		companyID:   in.CompanyID,
		senderID:    user.ID,
		recipientID: user.ID,
		emails:      emailsOf(user),
		sender:      &user,
		company:     &info,
		envelope:    in.envelopeFields,
		role:        in.Role,
		descriptor: message.Descriptor{
			Recipient: user.person(),
			Company:   info.message(),
		},
	})
}

func (m *Materializer) handleMembershipRemoved(ctx context.Context, p payload) error {
	in := parseMembershipRemoved(p)
	if skip(domain.EventMembershipRemoved, in) {
		return nil
	}
	sender, _, err := m.resolveParty(ctx, party(in.Sender))
	if err != nil {
		return err
	}
	receiver, _, err := m.resolveParty(ctx, party(in.Receiver))
	if err != nil {
		return err
	}
	info := m.resolveCompanyInfo(ctx, in.CompanyID)
	return m.persist(ctx, draft{
		event:       domain.EventMembershipRemoved,
		code:        message.CodeUserRemoved,
		channel:     domain.ChannelCompany,
		companyID:   in.CompanyID,
		senderID:    sender.ID,
		recipientID: receiver.ID,
		emails:      emailsOf(receiver),
		sender:      &sender,
		company:     &info,
		envelope:    in.envelopeFields,
		descriptor: message.Descriptor{
			Sender:    sender.person(),
			Recipient: receiver.person(),
			Company:   info.message(),
		},
	})
}

// handleRoleUpdated attributes the change to the receiver when the actor is
// not named or cannot be resolved.
func (m *Materializer) handleRoleUpdated(ctx context.Context, p payload) error {
	in := parseRoleUpdated(p)
	if skip(domain.EventMembershipRoleUpdated, in) {
		return nil
	}
	receiver, _, err := m.resolveParty(ctx, party(in.Receiver))
	if err != nil {
		return err
	}
	sender := receiver
	if in.Sender.ID != "" {
		actor, found, err := m.resolveParty(ctx, in.Sender)
		if err != nil {
			return err
		}
		if found {
			sender = actor
		}
	}
	info := m.resolveCompanyInfo(ctx, in.CompanyID)
	return m.persist(ctx, draft{
		event:        domain.EventMembershipRoleUpdated,
		code:         message.CodeUserRoleUpdated,
		channel:      domain.ChannelCompany,
		companyID:    in.CompanyID,
		senderID:     sender.ID,
		recipientID:  receiver.ID,
		emails:       emailsOf(receiver),
		sender:       &sender,
		company:      &info,
		envelope:     in.envelopeFields,
		role:         in.NewRole,
		previousRole: in.OldRole,
		descriptor: message.Descriptor{
			Sender:    sender.person(),
			Recipient: receiver.person(),
			Company:   info.message(),
			NewRole:   in.NewRole,
			OldRole:   in.OldRole,
		},
	})
}

// handleCompanyCreated confirms creation to the creator.
func (m *Materializer) handleCompanyCreated(ctx context.Context, p payload) error {
	in := parseCompanyCreated(p)
	if skip(domain.EventCompanyCreated, in) {
		return nil
	}
	creator, _, err := m.resolveParty(ctx, party(in.Creator))
	if err != nil {
		return err
	}
	info := m.resolveCompanyInfo(ctx, in.CompanyID)
	return m.persist(ctx, draft{
		event:       domain.EventCompanyCreated,
		code:        message.CodeCompanyCreated,
		channel:     domain.ChannelCompany,
		companyID:   in.CompanyID,
		senderID:    creator.ID,
		recipientID: creator.ID,
		emails:      emailsOf(creator),
		sender:      &creator,
		company:     &info,
		envelope:    in.envelopeFields,
		descriptor: message.Descriptor{
			Recipient: creator.person(),
			Company:   info.message(),
		},
	})
}

func emailsOf(p party) []string {
	if p.Email == "" {
		return nil
	}
	return []string{p.Email}
}
