// Package aws builds AWS SDK clients from the shared default credential chain.
package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SNSClient struct {
	client *sns.Client
}

// NewSNSClient loads credentials for region. A non-empty endpoint overrides
// the service URL (localstack in development).
func NewSNSClient(ctx context.Context, region, endpoint string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &SNSClient{client: client}, nil
}

func (s *SNSClient) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	return s.client.Publish(ctx, input)
}

// CheckFIFOTopic fails unless topicARN names an existing FIFO topic. Event
// ordering per template depends on message groups, which only FIFO topics honour.
func (s *SNSClient) CheckFIFOTopic(ctx context.Context, topicARN string) error {
	if !strings.HasSuffix(topicARN, ".fifo") {
		return fmt.Errorf("sns topic %s is not a FIFO topic", topicARN)
	}
	out, err := s.client.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: aws.String(topicARN)})
	if err != nil {
		return fmt.Errorf("get topic attributes %s: %w", topicARN, err)
	}
	if out.Attributes["FifoTopic"] != "true" {
		return fmt.Errorf("sns topic %s is not a FIFO topic", topicARN)
	}
	return nil
}
