package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-collab-notify/internal/application/message"
	"github.com/go-collab-notify/internal/domain"
)

// handleInviteCreated notifies the invited email's account, if one exists.
// Invitees without an account are reached by email only, outside this service.
func (m *Materializer) handleInviteCreated(ctx context.Context, p payload) error {
	in := parseInviteCreated(p)
	if skip(domain.EventInviteCreated, in) {
		return nil
	}

	recipient, err := m.users.GetByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Info("invited email has no account, skipping in-app notification", "invite_id", in.InviteID, "email", in.Email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up invited user for invite %s: %w", in.InviteID, err)
	}

	sender, _, err := m.resolveParty(ctx, in.Sender)
	if err != nil {
		return err
	}

	token, role := in.Token, in.Role
	if token == "" || role == "" {
		inv, err := m.invites.Get(ctx, in.InviteID)
		switch {
		case err == nil:
			if token == "" {
				token = inv.Token
			}
			if role == "" {
				role = inv.Role
			}
		case !errors.Is(err, domain.ErrNotFound):
			slog.Warn("could not load invite for notification", "invite_id", in.InviteID, "err", err)
		}
	}
	var url string
	if token != "" && m.frontendBaseURL != "" {
		url = m.frontendBaseURL + "/invite/" + token
	}

	info := m.resolveCompanyInfo(ctx, in.CompanyID)
	return m.persist(ctx, draft{
		event:       domain.EventInviteCreated,
		code:        message.CodeInviteCreated,
		channel:     domain.ChannelCompany,
		companyID:   in.CompanyID,
		senderID:    sender.ID,
		recipientID: recipient.UserID,
		emails:      []string{in.Email},
		sender:      &sender,
		company:     &info,
		envelope:    in.envelopeFields,
		inviteID:    in.InviteID,
		inviteURL:   url,
		role:        role,
		descriptor: message.Descriptor{
			Sender:    sender.person(),
			Recipient: &message.Person{Name: recipient.Name, Email: in.Email},
			Company:   info.message(),
			Invite:    &message.Invite{ID: in.InviteID, Email: in.Email, URL: url},
		},
	})
}

// handleInviteAccepted tells the inviter that the invitee joined.
func (m *Materializer) handleInviteAccepted(ctx context.Context, p payload) error {
	in := parseInviteAccepted(p)
	if skip(domain.EventInviteAccepted, in) {
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

	email := in.Email
	if email == "" {
		email = sender.Email
	}
	info := m.resolveCompanyInfo(ctx, in.CompanyID)
	return m.persist(ctx, draft{
		event:       domain.EventInviteAccepted,
		code:        message.CodeInviteAccepted,
		channel:     domain.ChannelCompany,
		companyID:   in.CompanyID,
		senderID:    sender.ID,
		recipientID: receiver.ID,
		emails:      emailsOf(receiver),
		sender:      &sender,
		company:     &info,
		envelope:    in.envelopeFields,
		inviteID:    in.InviteID,
		descriptor: message.Descriptor{
			Sender:    sender.person(),
			Recipient: receiver.person(),
			Company:   info.message(),
			Invite:    &message.Invite{ID: in.InviteID, Email: email},
		},
	})
}
