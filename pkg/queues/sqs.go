package queues

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQS caps batch sends at 10 entries per call.
const sqsMaxBatch = 10

const sqsWaitTimeSeconds = 10

// sqsAPI defines the minimal subset of the SQS client used by sqsQueue.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// sqsQueue implements Sender and Consumer over an AWS SQS queue.
type sqsQueue struct {
	id       string
	queueURL string
	client   sqsAPI
	log      Logger
}

// newSQSQueue creates an SQS queue backend from the given configuration.
func newSQSQueue(ctx context.Context, cfg QueueConfig, log Logger) (Sender, error) {
	if cfg.SQS == nil {
		return nil, fmt.Errorf("queue %q missing sqs configuration", cfg.ID)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	loadOpts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(cfg.SQS.Region)}
	if cfg.SQS.AccessKeyID != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.SQS.AccessKeyID, cfg.SQS.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &sqsQueue{
		id:       cfg.ID,
		queueURL: cfg.SQS.QueueURL,
		client:   sqs.NewFromConfig(awsCfg),
		log:      ensureLogger(log),
	}, nil
}

func (s *sqsQueue) ID() string    { return s.id }
func (s *sqsQueue) Type() string  { return TypeSQS }
func (s *sqsQueue) MaxBatch() int { return sqsMaxBatch }

// Send submits one message body to the queue.
func (s *sqsQueue) Send(ctx context.Context, body []byte) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if _, err := s.client.SendMessage(ctx, input); err != nil {
		s.log.ErrorObj("sqs send failed", "queue_sqs_error", map[string]any{
			"queue_id": s.id,
			"error":    err.Error(),
		})
		return fmt.Errorf("send message to sqs: %w", err)
	}
	return nil
}

// SendBatch submits up to MaxBatch bodies in one call.
func (s *sqsQueue) SendBatch(ctx context.Context, bodies [][]byte) error {
	if len(bodies) == 0 {
		return nil
	}
	if len(bodies) > sqsMaxBatch {
		return fmt.Errorf("sqs batch of %d exceeds limit %d", len(bodies), sqsMaxBatch)
	}

	entries := make([]types.SendMessageBatchRequestEntry, 0, len(bodies))
	for i, body := range bodies {
		entries = append(entries, types.SendMessageBatchRequestEntry{
			Id:          aws.String(strconv.Itoa(i)),
			MessageBody: aws.String(string(body)),
		})
	}

	out, err := s.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(s.queueURL),
		Entries:  entries,
	})
	if err != nil {
		s.log.ErrorObj("sqs batch send failed", "queue_sqs_error", map[string]any{
			"queue_id": s.id,
			"error":    err.Error(),
		})
		return fmt.Errorf("send batch to sqs: %w", err)
	}
	if len(out.Failed) > 0 {
		first := out.Failed[0]
		return fmt.Errorf("sqs rejected %d of %d batch entries: %s %s",
			len(out.Failed), len(entries), aws.ToString(first.Code), aws.ToString(first.Message))
	}
	return nil
}

// Poll long-polls the queue for up to max messages.
func (s *sqsQueue) Poll(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 || max > sqsMaxBatch {
		max = sqsMaxBatch
	}
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     sqsWaitTimeSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("receive from sqs: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			QueueID: s.id,
			Receipt: aws.ToString(m.ReceiptHandle),
			Body:    []byte(aws.ToString(m.Body)),
		})
	}
	return msgs, nil
}

// Ack deletes the message; SQS redelivers unacked messages after the
// visibility timeout.
func (s *sqsQueue) Ack(ctx context.Context, msg Message) error {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(msg.Receipt),
	})
	if err != nil {
		return fmt.Errorf("delete sqs message: %w", err)
	}
	return nil
}
