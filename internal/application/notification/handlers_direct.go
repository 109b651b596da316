package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-collab-notify/internal/application/message"
	"github.com/go-collab-notify/internal/domain"
)

// handleNotificationSent materializes a direct or company-broadcast message.
// A payload that already names a stored notification is a replay: only the
// signal is re-emitted.
func (m *Materializer) handleNotificationSent(ctx context.Context, p payload) error {
	in := parseNotificationSent(p)

	if in.NotificationID != "" && in.RecipientUserID != "" {
		existing, err := m.notifications.Get(ctx, in.NotificationID)
		switch {
		case err == nil:
			m.signal(ctx, existing)
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("load notification %s for replay: %w", in.NotificationID, err)
		}
	}
	if skip(domain.EventNotificationSent, in) {
		return nil
	}

	sender, _, err := m.resolveParty(ctx, in.Sender)
	if err != nil {
		return err
	}
	recipient, _, err := m.resolveParty(ctx, party{ID: in.RecipientUserID})
	if err != nil {
		return err
	}

	d := draft{
		event:       domain.EventNotificationSent,
		code:        message.CodeNotificationSent,
		channel:     domain.ChannelUser,
		companyID:   in.CompanyID,
		senderID:    sender.ID,
		recipientID: recipient.ID,
		emails:      in.RecipientsEmails,
		sender:      &sender,
		envelope:    in.envelopeFields,
		descriptor: message.Descriptor{
			Sender:         sender.person(),
			Recipient:      recipient.person(),
			AdditionalData: &message.AdditionalData{Title: in.Title, Message: in.Message},
		},
	}
	if len(d.emails) == 0 && recipient.Email != "" {
		d.emails = []string{recipient.Email}
	}
	if in.CompanyID != "" {
		info := m.resolveCompanyInfo(ctx, in.CompanyID)
		d.channel = domain.ChannelCompany
		d.company = &info
		d.descriptor.Company = info.message()
	}
	return m.persist(ctx, d)
}
