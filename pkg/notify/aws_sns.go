package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes events to an SNS topic. Subscribers can filter on
// the shipment_id and event_type message attributes.
type SNSPublisher struct {
	client   snsAPI
	topicARN string
	fifo     bool
}

func NewSNSPublisher(ctx context.Context, region, topicARN string) (*SNSPublisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSNSPublisher(sns.NewFromConfig(cfg), topicARN), nil
}

func newSNSPublisher(client snsAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		fifo:     strings.HasSuffix(topicARN, ".fifo"),
	}
}

func (p *SNSPublisher) Publish(ctx context.Context, event *Event) (string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"shipment_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.ShipmentID),
			},
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Type),
			},
		},
	}
	// FIFO topics order updates per shipment.
	if p.fifo {
		input.MessageGroupId = aws.String(event.ShipmentID)
		input.MessageDeduplicationId = aws.String(fmt.Sprintf("%s-%d", event.ShipmentID, event.Timestamp.UnixNano()))
	}

	resp, err := p.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", p.topicARN, err)
	}
	return aws.ToString(resp.MessageId), nil
}
