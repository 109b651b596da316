package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-collab-notify/internal/domain"
)

var ErrTopicNotConfigured = errors.New("sns topic arn not configured")

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Signaler publishes notifications.created to an SNS topic. The signal name
// travels as the "name" message attribute so subscriptions can filter on it.
type Signaler struct {
	client   publisher
	topicARN string
}

func NewSignaler(client publisher, topicARN string) (*Signaler, error) {
	if topicARN == "" {
		return nil, ErrTopicNotConfigured
	}
	return &Signaler{client: client, topicARN: topicARN}, nil
}

// NewClient creates an SNS client. A non-empty endpoint (LocalStack) replaces
// the resolved AWS endpoint.
func NewClient(awsCfg aws.Config, endpoint string) *sns.Client {
	var opts []func(*sns.Options)
	if endpoint != "" {
		opts = append(opts, func(o *sns.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	return sns.NewFromConfig(awsCfg, opts...)
}

func (s *Signaler) NotificationCreated(ctx context.Context, n domain.NotificationCreated) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"name": {DataType: aws.String("String"), StringValue: aws.String(domain.SignalNotificationCreated)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s to sns: %w", domain.SignalNotificationCreated, err)
	}
	return nil
}
