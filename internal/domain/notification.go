package domain

import "time"

// Notification channels.
const (
	ChannelCompany = "company"
	ChannelFriend  = "friend"
	ChannelUser    = "user"
)

// Notification is a materialized notification. A nil RecipientUserID means the
// notification is addressed to the whole company.
type Notification struct {
	NotificationID   string           `json:"id" dynamodbav:"notification_id"`
	CompanyID        *string          `json:"company_id" dynamodbav:"company_id,omitempty"`
	SenderUserID     *string          `json:"sender_user_id" dynamodbav:"sender_user_id,omitempty"`
	RecipientUserID  *string          `json:"recipient_user_id" dynamodbav:"recipient_user_id,omitempty"`
	RecipientsEmails []string         `json:"recipients_emails" dynamodbav:"recipients_emails"`
	Title            string           `json:"title" dynamodbav:"title"`
	Body             string           `json:"body" dynamodbav:"body"`
	Meta             NotificationMeta `json:"meta" dynamodbav:"meta"`
	Read             bool             `json:"read" dynamodbav:"read"`
	CreatedAt        time.Time        `json:"created" dynamodbav:"created_at"`
}

// NotificationMeta carries the semantic kind, delivery channel and the
// denormalized snapshots taken when the notification was built.
type NotificationMeta struct {
	Kind         string           `json:"kind" dynamodbav:"kind"`
	Channel      string           `json:"channel" dynamodbav:"channel"`
	Sender       *UserSnapshot    `json:"sender,omitempty" dynamodbav:"sender,omitempty"`
	Company      *CompanySnapshot `json:"company,omitempty" dynamodbav:"company,omitempty"`
	EventID      string           `json:"eventId" dynamodbav:"event_id"`
	Timestamp    string           `json:"timestamp" dynamodbav:"timestamp"` // ISO-8601
	FriendshipID string           `json:"friendshipId,omitempty" dynamodbav:"friendship_id,omitempty"`
	InviteID     string           `json:"inviteId,omitempty" dynamodbav:"invite_id,omitempty"`
	InviteURL    string           `json:"inviteUrl,omitempty" dynamodbav:"invite_url,omitempty"`
	Role         string           `json:"role,omitempty" dynamodbav:"role,omitempty"`
	PreviousRole string           `json:"previousRole,omitempty" dynamodbav:"previous_role,omitempty"`
}

type UserSnapshot struct {
	ID    string `json:"id" dynamodbav:"id"`
	Name  string `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Email string `json:"email,omitempty" dynamodbav:"email,omitempty"`
}

type CompanySnapshot struct {
	ID          string `json:"id" dynamodbav:"id"`
	Name        string `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Email       string `json:"email,omitempty" dynamodbav:"email,omitempty"` // primary owner's email
	Description string `json:"description,omitempty" dynamodbav:"description,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty" dynamodbav:"logo_url,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty" dynamodbav:"created_at,omitempty"`
	MemberCount *int   `json:"memberCount,omitempty" dynamodbav:"member_count,omitempty"`
}

// CreateNotificationInput is what the materializer hands to the repository.
type CreateNotificationInput struct {
	CompanyID        *string
	SenderUserID     *string
	RecipientUserID  *string
	RecipientsEmails []string
	Title            string
	Body             string
	Meta             NotificationMeta
}

// NotificationCreated is the realtime side-signal emitted after a notification
// is persisted (or replayed).
type NotificationCreated struct {
	NotificationID  string  `json:"notificationId"`
	CompanyID       *string `json:"companyId"`
	RecipientUserID *string `json:"recipientUserId"`
	SenderUserID    *string `json:"senderUserId"`
}

// SignalNotificationCreated is the side-signal name.
const SignalNotificationCreated = "notifications.created"
