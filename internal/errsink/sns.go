package errsink

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/logger"
)

// snsAPI defines the minimal subset of the SNS client used by snsSink.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// snsSink forwards failures to an SNS topic for external alerting hooks.
type snsSink struct {
	topicARN string
	client   snsAPI
	log      logger.Logger
}

// NewSNSSink builds a sink publishing failures to the given topic.
func NewSNSSink(ctx context.Context, topicARN, region string, log logger.Logger) (Sink, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}

	return &snsSink{
		topicARN: topicARN,
		client:   sns.NewFromConfig(awsCfg),
		log:      log,
	}, nil
}

func (s *snsSink) Report(ctx context.Context, f domain.DeliveryFailure) {
	payload, err := json.Marshal(f)
	if err != nil {
		s.log.ErrorObj("sns sink encode failed", "sink_sns_error", err.Error())
		return
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"stage": {
				DataType:    aws.String("String"),
				StringValue: aws.String(f.Stage),
			},
		},
	}
	if _, err := s.client.Publish(ctx, input); err != nil {
		s.log.ErrorObj("sns sink publish failed", "sink_sns_error", map[string]any{
			"stage": f.Stage,
			"error": err.Error(),
		})
	}
}
