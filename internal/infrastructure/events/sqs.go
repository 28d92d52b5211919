package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/domain/shared"
	"github.com/alchemorsel/pantry/internal/infrastructure/config"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
)

// DefaultSQSPublishTimeout bounds a single SendMessage call
const DefaultSQSPublishTimeout = 2 * time.Second

// SQSPublisher sends events to an SQS queue as JSON envelopes.
// Each send is bounded by timeout so a slow queue cannot stall reconciliation.
type SQSPublisher struct {
	client   sqsiface.SQSAPI
	queueURL string
	timeout  time.Duration
	logger   *zap.Logger
}

var _ outbound.EventPublisher = (*SQSPublisher)(nil)

// NewSQSSession creates an AWS session from configuration.
// Static credentials are used when configured, otherwise the default chain.
func NewSQSSession(cfg config.AWSConfig) (*session.Session, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return sess, nil
}

// NewSQSPublisher creates a publisher for queueURL. A non-positive timeout
// selects DefaultSQSPublishTimeout.
func NewSQSPublisher(client sqsiface.SQSAPI, queueURL string, timeout time.Duration, logger *zap.Logger) *SQSPublisher {
	if timeout <= 0 {
		timeout = DefaultSQSPublishTimeout
	}
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		timeout:  timeout,
		logger:   logger.Named("sqs-publisher"),
	}
}

// NewSQSPublisherFromConfig wires a publisher from the AWS and events sections
func NewSQSPublisherFromConfig(awsCfg config.AWSConfig, eventsCfg config.EventsConfig, logger *zap.Logger) (*SQSPublisher, error) {
	sess, err := NewSQSSession(awsCfg)
	if err != nil {
		return nil, err
	}
	return NewSQSPublisher(sqs.New(sess), eventsCfg.SQSQueueURL, eventsCfg.SQSPublishTimeout, logger), nil
}

// Publish sends event to the queue
func (p *SQSPublisher) Publish(ctx context.Context, event shared.DomainEvent) error {
	envelope := NewEnvelope(event)
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", envelope.Type, err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]*sqs.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(envelope.Type),
			},
		},
	}
	if owned, ok := event.(shared.UserEvent); ok {
		input.MessageAttributes["user_id"] = &sqs.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(owned.OwnerID().String()),
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.SendMessageWithContext(sendCtx, input)
	if err != nil {
		return fmt.Errorf("failed to send event %s to SQS: %w", envelope.Type, err)
	}

	p.logger.Debug("Event sent to SQS",
		zap.String("event", envelope.Type),
		zap.String("message_id", aws.StringValue(out.MessageId)),
	)
	return nil
}
