package notification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-collab-notify/internal/application/message"
	"github.com/go-collab-notify/internal/domain"
	"github.com/go-collab-notify/internal/pkg/validate"
)

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type companyStore interface {
	Get(ctx context.Context, companyID string) (*domain.Company, error)
}

type membershipStore interface {
	ListByCompany(ctx context.Context, companyID string) ([]domain.Membership, error)
}

type inviteStore interface {
	Get(ctx context.Context, inviteID string) (*domain.Invite, error)
}

type notificationStore interface {
	Create(ctx context.Context, in domain.CreateNotificationInput) (*domain.Notification, error)
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
}

// signaler delivers the realtime notifications.created side-signal.
type signaler interface {
	NotificationCreated(ctx context.Context, s domain.NotificationCreated) error
}

// dedupStore claims a key once. Claim returns false if the key was already claimed.
type dedupStore interface {
	Claim(ctx context.Context, key string) (bool, error)
}

type ServiceDeps struct {
	UserRepo         userStore
	CompanyRepo      companyStore
	MembershipRepo   membershipStore
	InviteRepo       inviteStore
	NotificationRepo notificationStore
	Signaler         signaler
	// Dedup is optional. When nil, a redelivered event creates a duplicate
	// notification (except for replayed direct notifications).
	Dedup           dedupStore
	Quarantine      *Quarantine
	FrontendBaseURL string
	Now             func() time.Time
}

type handlerFunc func(ctx context.Context, p payload) error

// Materializer turns consumed domain events into persisted notifications.
type Materializer struct {
	users           userStore
	companies       companyStore
	memberships     membershipStore
	invites         inviteStore
	notifications   notificationStore
	signals         signaler
	dedup           dedupStore
	quarantine      *Quarantine
	frontendBaseURL string
	now             func() time.Time

	handlers map[string]handlerFunc
}

func NewMaterializer(deps ServiceDeps) *Materializer {
	m := &Materializer{
		users:           deps.UserRepo,
		companies:       deps.CompanyRepo,
		memberships:     deps.MembershipRepo,
		invites:         deps.InviteRepo,
		notifications:   deps.NotificationRepo,
		signals:         deps.Signaler,
		dedup:           deps.Dedup,
		quarantine:      deps.Quarantine,
		frontendBaseURL: strings.TrimRight(deps.FrontendBaseURL, "/"),
		now:             deps.Now,
	}
	if m.quarantine == nil {
		m.quarantine = NewQuarantine(nil)
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.handlers = map[string]handlerFunc{
		domain.EventNotificationSent:      m.handleNotificationSent,
		domain.EventFriendRequestSent:     m.handleFriendRequestSent,
		domain.EventFriendRequestAccepted: m.handleFriendRequestAccepted,
		domain.EventFriendRequestRejected: m.handleFriendRequestRejected,
		domain.EventFriendRemoved:         m.handleFriendRemoved,
		domain.EventInviteCreated:         m.handleInviteCreated,
		domain.EventInviteAccepted:        m.handleInviteAccepted,
		domain.EventInviteRejected:        m.handleNoop,
		domain.EventMembershipJoined:      m.handleMembershipJoined,
		domain.EventMembershipRemoved:     m.handleMembershipRemoved,
		domain.EventMembershipRoleUpdated: m.handleRoleUpdated,
		domain.EventCompanyCreated:        m.handleCompanyCreated,
		domain.EventCompanyUpdated:        m.handleNoop,
		domain.EventCompanyDeleted:        m.handleNoop,
	}
	return m
}

// Handles reports whether eventName has a handler.
func (m *Materializer) Handles(eventName string) bool {
	_, ok := m.handlers[eventName]
	return ok
}

// CreateNotificationForEvent runs the handler for eventName. It never returns
// an error and never panics: failures are quarantined so that a malformed
// payload is not redelivered forever.
func (m *Materializer) CreateNotificationForEvent(ctx context.Context, eventName string, raw map[string]any) {
	h, ok := m.handlers[eventName]
	if !ok {
		slog.Debug("no notification handler for event", "event", eventName)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.quarantine.Record(eventName, fmt.Errorf("panic: %v", r), raw, debug.Stack())
		}
	}()
	if err := h(ctx, payload(raw)); err != nil {
		m.quarantine.Record(eventName, err, raw, debug.Stack())
	}
}

func (m *Materializer) handleNoop(context.Context, payload) error { return nil }

// skip reports whether input lacks required identifiers, logging which ones.
func skip(eventName string, input any) bool {
	missing := validate.Missing(input)
	if len(missing) == 0 {
		return false
	}
	slog.Debug("event lacks required fields, nothing to notify", "event", eventName, "missing", missing)
	return true
}

// resolveParty fills name and email from the user store unless the payload
// already carried an email. found is false when the user does not exist.
func (m *Materializer) resolveParty(ctx context.Context, p party) (party, bool, error) {
	if p.ID == "" {
		return p, false, nil
	}
	if p.Email != "" {
		return p, true, nil
	}
	u, err := m.users.Get(ctx, p.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("resolve user %s: %w", p.ID, err)
	}
	if p.Name == "" {
		p.Name = u.Name
	}
	p.Email = u.Email
	return p, true, nil
}

// draft is a notification ready to be deduplicated, persisted and signalled.
type draft struct {
	event       string
	code        string
	channel     string
	companyID   string
	senderID    string
	recipientID string
	emails      []string
	descriptor  message.Descriptor
	sender      *party
	company     *companyInfo
	envelope    envelopeFields
	// meta extras
	friendshipID string
	inviteID     string
	inviteURL    string
	role         string
	previousRole string
}

func (m *Materializer) persist(ctx context.Context, d draft) error {
	if m.dedup != nil {
		claimed, err := m.dedup.Claim(ctx, d.dedupKey())
		if err != nil {
			return fmt.Errorf("claim dedup key for %s: %w", d.event, err)
		}
		if !claimed {
			slog.Info("duplicate event, notification already created", "event", d.event, "event_id", d.envelope.EventID)
			return nil
		}
	}

	d.descriptor.EventCode = d.code
	input := domain.CreateNotificationInput{
		CompanyID:        optional(d.companyID),
		SenderUserID:     optional(d.senderID),
		RecipientUserID:  optional(d.recipientID),
		RecipientsEmails: d.emails,
		Title:            message.Title(d.descriptor),
		Body:             message.Body(d.descriptor),
		Meta: domain.NotificationMeta{
			Kind:         d.event,
			Channel:      d.channel,
			EventID:      d.envelope.EventID,
			Timestamp:    m.timestamp(d.envelope.Timestamp),
			FriendshipID: d.friendshipID,
			InviteID:     d.inviteID,
			InviteURL:    d.inviteURL,
			Role:         d.role,
			PreviousRole: d.previousRole,
		},
	}
	if input.RecipientsEmails == nil {
		input.RecipientsEmails = []string{}
	}
	if input.Meta.EventID == "" {
		input.Meta.EventID = d.code
	}
	if d.sender != nil && d.sender.ID != "" {
		input.Meta.Sender = &domain.UserSnapshot{ID: d.sender.ID, Name: d.sender.Name, Email: d.sender.Email}
	}
	if d.company != nil {
		input.Meta.Company = d.company.snapshot()
	}

	n, err := m.notifications.Create(ctx, input)
	if err != nil {
		return fmt.Errorf("create %s notification: %w", d.event, err)
	}
	m.signal(ctx, n)
	return nil
}

// timestamp keeps a valid upstream ISO-8601 timestamp, otherwise uses the
// processing time.
func (m *Materializer) timestamp(upstream string) string {
	if upstream != "" {
		if _, err := time.Parse(time.RFC3339Nano, upstream); err == nil {
			return upstream
		}
	}
	return m.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func (m *Materializer) signal(ctx context.Context, n *domain.Notification) {
	if m.signals == nil {
		return
	}
	err := m.signals.NotificationCreated(ctx, domain.NotificationCreated{
		NotificationID:  n.NotificationID,
		CompanyID:       n.CompanyID,
		RecipientUserID: n.RecipientUserID,
		SenderUserID:    n.SenderUserID,
	})
	if err != nil {
		slog.Warn("could not emit notification created signal", "notification_id", n.NotificationID, "err", err)
	}
}

// dedupKey hashes the event name, event id and the canonical ids of the draft.
func (d draft) dedupKey() string {
	h := sha256.New()
	for _, part := range []string{
		d.event, d.envelope.EventID, d.companyID, d.senderID, d.recipientID,
		d.friendshipID, d.inviteID, d.role, d.previousRole,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (p party) person() *message.Person {
	if p.Name == "" && p.Email == "" {
		return nil
	}
	return &message.Person{Name: p.Name, Email: p.Email}
}
