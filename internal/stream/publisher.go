// Package stream publishes created-notification summaries to an SNS topic so
// downstream consumers (digest builders, analytics) can react without reading
// the notifications table.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/store"
)

// Publisher handles SNS topic publishing for the notification stream.
type Publisher struct {
	client   *sns.Client
	topicARN string
}

// Message is the stream record for a created notification. It carries the
// recipient and the notifiable reference, not the rendered payload.
type Message struct {
	NotificationID string               `json:"notification_id"`
	UserID         *int64               `json:"user_id,omitempty"`
	OrganizationID *int64               `json:"organization_id,omitempty"`
	NotifiableType event.NotifiableKind `json:"notifiable_type"`
	NotifiableID   int64                `json:"notifiable_id"`
	Action         string               `json:"action,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// NewPublisher creates an SNS publisher for the given topic
func NewPublisher(ctx context.Context, topicARN string, optFns ...func(*awsconfig.LoadOptions) error) (*Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Publisher{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
	}, nil
}

// NewPublisherWithEndpoint creates a publisher with custom endpoint (for LocalStack)
func NewPublisherWithEndpoint(ctx context.Context, topicARN, endpoint, region string) (*Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &Publisher{
		client:   client,
		topicARN: topicARN,
	}, nil
}

// FromNotification builds the stream record for a stored notification.
func FromNotification(n *store.Notification) Message {
	msg := Message{
		NotificationID: n.ID.String(),
		UserID:         n.UserID,
		OrganizationID: n.OrganizationID,
		NotifiableType: n.NotifiableType,
		NotifiableID:   n.NotifiableID,
		CreatedAt:      n.CreatedAt,
	}
	if n.Action != nil {
		msg.Action = *n.Action
	}
	return msg
}

// Publish sends a stream record to SNS. Subscribers filter on the
// notifiable_type attribute.
func (p *Publisher) Publish(ctx context.Context, msg Message) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"notifiable_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.NotifiableType)),
			},
		},
	}

	result, err := p.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to publish to SNS: %w", err)
	}

	return *result.MessageId, nil
}
