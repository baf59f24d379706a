package errsink

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/logger"
)

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSNSSinkPublishesFailure(t *testing.T) {
	client := &fakeSNSClient{}
	sink := &snsSink{
		topicARN: "arn:aws:sns:::alerts",
		client:   client,
		log:      logger.NopLogger{},
	}

	sink.Report(context.Background(), domain.DeliveryFailure{
		Stage:      domain.StageFetch,
		SourceURL:  "https://example.com/?p=1",
		Message:    "boom",
		OccurredAt: time.Now().UTC(),
	})

	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::alerts" {
		t.Fatalf("TopicArn = %s", got)
	}
	attr, ok := client.input.MessageAttributes["stage"]
	if !ok || aws.ToString(attr.StringValue) != domain.StageFetch {
		t.Fatalf("stage attribute missing or wrong: %#v", attr)
	}
	if !strings.Contains(aws.ToString(client.input.Message), `"source_url":"https://example.com/?p=1"`) {
		t.Fatalf("Message missing source url: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSSinkSwallowsPublishError(t *testing.T) {
	sink := &snsSink{
		topicARN: "arn:aws:sns:::alerts",
		client:   &fakeSNSClient{err: errors.New("boom")},
		log:      logger.NopLogger{},
	}

	// Report never propagates sink errors.
	sink.Report(context.Background(), domain.DeliveryFailure{Stage: domain.StageNotify, Message: "x"})
}
