package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-collab-notify/internal/domain"
	"github.com/go-collab-notify/internal/pkg/id"
)

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewNotificationRepo(client API, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName, now: time.Now}
}

// Create assigns an id and creation time and stores the notification unread.
func (r *NotificationRepo) Create(ctx context.Context, in domain.CreateNotificationInput) (*domain.Notification, error) {
	n := &domain.Notification{
		NotificationID:   id.New(),
		CompanyID:        in.CompanyID,
		SenderUserID:     in.SenderUserID,
		RecipientUserID:  in.RecipientUserID,
		RecipientsEmails: in.RecipientsEmails,
		Title:            in.Title,
		Body:             in.Body,
		Meta:             in.Meta,
		Read:             false,
		CreatedAt:        r.now().UTC(),
	}
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(notification_id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil, fmt.Errorf("notification %s: %w", n.NotificationID, domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("put notification: %w", err)
	}
	return n, nil
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	var n domain.Notification
	if err := getItem(ctx, r.client, r.tableName, strKey("notification_id", notificationID), "notification "+notificationID, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
