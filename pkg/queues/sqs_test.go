package queues

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQSClient struct {
	sendInput    *sqs.SendMessageInput
	batchInput   *sqs.SendMessageBatchInput
	receiveInput *sqs.ReceiveMessageInput
	deleteInput  *sqs.DeleteMessageInput

	failed   []types.BatchResultErrorEntry
	messages []types.Message
	err      error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sendInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func (f *fakeSQSClient) SendMessageBatch(_ context.Context, params *sqs.SendMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	f.batchInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageBatchOutput{Failed: f.failed}, nil
}

func (f *fakeSQSClient) ReceiveMessage(_ context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.receiveInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQSClient) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleteInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.DeleteMessageOutput{}, nil
}

func newTestSQSQueue(client sqsAPI) *sqsQueue {
	return &sqsQueue{
		id:       "fetch",
		queueURL: "https://example.com/queue",
		client:   client,
		log:      noopLogger{},
	}
}

func TestSQSSend(t *testing.T) {
	client := &fakeSQSClient{}
	q := newTestSQSQueue(client)

	if err := q.Send(context.Background(), []byte(`{"source_url":"u"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if client.sendInput == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.sendInput.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	if got := aws.ToString(client.sendInput.MessageBody); got != `{"source_url":"u"}` {
		t.Fatalf("MessageBody = %s", got)
	}
}

func TestSQSSendBatch(t *testing.T) {
	client := &fakeSQSClient{}
	q := newTestSQSQueue(client)

	bodies := [][]byte{[]byte("a"), []byte("b")}
	if err := q.SendBatch(context.Background(), bodies); err != nil {
		t.Fatalf("SendBatch: %v", err)
	}
	if len(client.batchInput.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(client.batchInput.Entries))
	}
	if aws.ToString(client.batchInput.Entries[1].MessageBody) != "b" {
		t.Fatalf("entry body = %s", aws.ToString(client.batchInput.Entries[1].MessageBody))
	}
}

func TestSQSSendBatchOverLimit(t *testing.T) {
	q := newTestSQSQueue(&fakeSQSClient{})
	bodies := make([][]byte, sqsMaxBatch+1)
	for i := range bodies {
		bodies[i] = []byte("x")
	}
	if err := q.SendBatch(context.Background(), bodies); err == nil {
		t.Fatalf("expected batch limit error")
	}
}

func TestSQSSendBatchPartialFailure(t *testing.T) {
	client := &fakeSQSClient{failed: []types.BatchResultErrorEntry{{
		Id:      aws.String("0"),
		Code:    aws.String("InternalError"),
		Message: aws.String("try again"),
	}}}
	q := newTestSQSQueue(client)

	if err := q.SendBatch(context.Background(), [][]byte{[]byte("a")}); err == nil {
		t.Fatalf("expected error for rejected entries")
	}
}

func TestSQSPollAndAck(t *testing.T) {
	client := &fakeSQSClient{messages: []types.Message{{
		Body:          aws.String(`{"item_id":3}`),
		ReceiptHandle: aws.String("r-1"),
	}}}
	q := newTestSQSQueue(client)

	msgs, err := q.Poll(context.Background(), 5)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if client.receiveInput.MaxNumberOfMessages != 5 {
		t.Fatalf("MaxNumberOfMessages = %d", client.receiveInput.MaxNumberOfMessages)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].QueueID != "fetch" || msgs[0].Receipt != "r-1" {
		t.Fatalf("message = %+v", msgs[0])
	}

	if err := q.Ack(context.Background(), msgs[0]); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if aws.ToString(client.deleteInput.ReceiptHandle) != "r-1" {
		t.Fatalf("delete receipt = %s", aws.ToString(client.deleteInput.ReceiptHandle))
	}
}

func TestSQSSendError(t *testing.T) {
	q := newTestSQSQueue(&fakeSQSClient{err: errors.New("boom")})
	if err := q.Send(context.Background(), []byte("a")); err == nil {
		t.Fatalf("expected error from Send")
	}
	if _, err := q.Poll(context.Background(), 1); err == nil {
		t.Fatalf("expected error from Poll")
	}
}
