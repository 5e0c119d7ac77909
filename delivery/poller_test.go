package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/geoingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/geo-uploads"

// mockSQS implements the calls of sqsiface.SQSAPI the poller makes.
type mockSQS struct {
	sqsiface.SQSAPI
	mock.Mock
}

func (m *mockSQS) ReceiveMessageWithContext(ctx aws.Context, input *sqs.ReceiveMessageInput, _ ...request.Option) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*sqs.ReceiveMessageOutput)
	return out, args.Error(1)
}

func (m *mockSQS) DeleteMessageWithContext(ctx aws.Context, input *sqs.DeleteMessageInput, _ ...request.Option) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*sqs.DeleteMessageOutput)
	return out, args.Error(1)
}

func (m *mockSQS) GetQueueUrlWithContext(ctx aws.Context, input *sqs.GetQueueUrlInput, _ ...request.Option) (*sqs.GetQueueUrlOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*sqs.GetQueueUrlOutput)
	return out, args.Error(1)
}

// fakeIngester records calls and returns canned errors per location.
type fakeIngester struct {
	mu    sync.Mutex
	calls []core.Location
	errs  map[core.Location]error
}

func (f *fakeIngester) Ingest(ctx context.Context, loc core.Location) (*core.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, loc)
	if err := f.errs[loc]; err != nil {
		return nil, err
	}
	return &core.IngestResult{Source: loc.String(), Inserted: 2}, nil
}

func (f *fakeIngester) called() []core.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Location(nil), f.calls...)
}

func message(id, body string) *sqs.Message {
	return &sqs.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("receipt-" + id),
		Body:          aws.String(body),
	}
}

func receiving(msgs ...*sqs.Message) *sqs.ReceiveMessageOutput {
	return &sqs.ReceiveMessageOutput{Messages: msgs}
}

func deleteOf(id string) interface{} {
	return mock.MatchedBy(func(input *sqs.DeleteMessageInput) bool {
		return aws.StringValue(input.ReceiptHandle) == "receipt-"+id &&
			aws.StringValue(input.QueueUrl) == testQueueURL
	})
}

func newTestPoller(t *testing.T, client *mockSQS, ingester Ingester) *Poller {
	t.Helper()
	p, err := NewPoller(client, testQueueURL, ingester, WithBackOff(&backoff.ZeroBackOff{}))
	require.NoError(t, err)
	return p
}

func TestNewPoller_Validation(t *testing.T) {
	client := &mockSQS{}
	ing := &fakeIngester{}

	_, err := NewPoller(nil, testQueueURL, ing)
	assert.ErrorIs(t, err, ErrQueueClientRequired)

	_, err = NewPoller(client, "", ing)
	assert.ErrorIs(t, err, ErrQueueURLRequired)

	_, err = NewPoller(client, testQueueURL, nil)
	assert.ErrorIs(t, err, ErrIngesterRequired)

	for _, wait := range []time.Duration{30 * time.Second, 0, 500 * time.Millisecond, -time.Second} {
		_, err = NewPoller(client, testQueueURL, ing, WithWaitTime(wait))
		assert.Error(t, err, wait)
	}

	p, err := NewPoller(client, testQueueURL, ing, WithWaitTime(MinWaitTime))
	require.NoError(t, err)
	assert.Equal(t, time.Second, p.waitTime)
}

func TestNewNotification(t *testing.T) {
	body := `{"Records":[{"s3":{"bucket":{"name":"geo"},"object":{"key":"a.json"}}}]}`
	n, err := NewNotification(message("m0", body))
	require.NoError(t, err)
	assert.Equal(t, "m0", n.MessageID)
	assert.Equal(t, "receipt-m0", n.ReceiptHandle)
	assert.Equal(t, []core.Location{{Bucket: "geo", Key: "a.json"}}, n.Locations)

	n, err = NewNotification(message("m1", "garbage"))
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
	require.NotNil(t, n)
	assert.Equal(t, "receipt-m1", n.ReceiptHandle)
	assert.Empty(t, n.Locations)
}

func TestPollOnce_ReceiveParameters(t *testing.T) {
	client := &mockSQS{}
	client.On("ReceiveMessageWithContext", mock.Anything, mock.MatchedBy(func(input *sqs.ReceiveMessageInput) bool {
		return aws.StringValue(input.QueueUrl) == testQueueURL &&
			aws.Int64Value(input.MaxNumberOfMessages) == 1 &&
			aws.Int64Value(input.WaitTimeSeconds) == 20
	})).Return(receiving(), nil).Once()

	p := newTestPoller(t, client, &fakeIngester{})
	require.NoError(t, p.PollOnce(context.Background()))
	client.AssertExpectations(t)
}

func TestPollOnce_DeletesAfterSuccess(t *testing.T) {
	client := &mockSQS{}
	ing := &fakeIngester{}
	body := s3Event([2]string{"geo", "a.json"}, [2]string{"geo", "b.json"})

	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).Return(receiving(message("m1", body)), nil).Once()
	client.On("DeleteMessageWithContext", mock.Anything, deleteOf("m1")).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	p := newTestPoller(t, client, ing)
	require.NoError(t, p.PollOnce(context.Background()))

	assert.Equal(t, []core.Location{{Bucket: "geo", Key: "a.json"}, {Bucket: "geo", Key: "b.json"}}, ing.called())
	client.AssertExpectations(t)
}

func TestPollOnce_DocumentFailureLeavesMessage(t *testing.T) {
	failing := core.Location{Bucket: "geo", Key: "missing.json"}

	for name, docErr := range map[string]error{
		"not found":         fmt.Errorf("%w: %s", core.ErrNotFound, failing),
		"transient":         fmt.Errorf("%w: timeout", core.ErrTransientIO),
		"malformed":         fmt.Errorf("%w: bad json", core.ErrMalformedDocument),
		"schema":            core.ErrSchema,
		"store unavailable": fmt.Errorf("%w: nothing stored", core.ErrStoreUnavailable),
	} {
		t.Run(name, func(t *testing.T) {
			client := &mockSQS{}
			ing := &fakeIngester{errs: map[core.Location]error{failing: docErr}}
			body := s3Event([2]string{"geo", "ok.json"}, [2]string{"geo", "missing.json"})

			client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).Return(receiving(message("m2", body)), nil).Once()

			p := newTestPoller(t, client, ing)
			err := p.PollOnce(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, docErr)

			client.AssertNotCalled(t, "DeleteMessageWithContext", mock.Anything, mock.Anything)
		})
	}
}

func TestPollOnce_PartialFeaturesStillAcknowledged(t *testing.T) {
	client := &mockSQS{}
	ing := &partialIngester{}
	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).
		Return(receiving(message("m3", s3Event([2]string{"geo", "a.json"}))), nil).Once()
	client.On("DeleteMessageWithContext", mock.Anything, deleteOf("m3")).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	p := newTestPoller(t, client, ing)
	require.NoError(t, p.PollOnce(context.Background()))
	client.AssertExpectations(t)
}

type partialIngester struct{}

func (partialIngester) Ingest(ctx context.Context, loc core.Location) (*core.IngestResult, error) {
	return &core.IngestResult{Source: loc.String(), Inserted: 3, Failed: 1}, nil
}

func TestPollOnce_BadRecordDoesNotDropGoodOne(t *testing.T) {
	client := &mockSQS{}
	ing := &fakeIngester{}
	body := `{"Records":[` +
		`{"s3":{"bucket":{"name":"geo"},"object":{"key":"good.json"}}},` +
		`{"s3":{"bucket":{"name":"geo"},"object":{"key":12}}}]}`

	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).Return(receiving(message("m9", body)), nil).Once()
	client.On("DeleteMessageWithContext", mock.Anything, deleteOf("m9")).
		Run(func(mock.Arguments) {
			assert.Equal(t, []core.Location{{Bucket: "geo", Key: "good.json"}}, ing.called(),
				"document must be ingested before the message is deleted")
		}).
		Return(&sqs.DeleteMessageOutput{}, nil).Once()

	p := newTestPoller(t, client, ing)
	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, []core.Location{{Bucket: "geo", Key: "good.json"}}, ing.called())
	client.AssertExpectations(t)
}

func TestPollOnce_BadRecordWithFailingDocumentLeavesMessage(t *testing.T) {
	client := &mockSQS{}
	good := core.Location{Bucket: "geo", Key: "good.json"}
	ing := &fakeIngester{errs: map[core.Location]error{good: fmt.Errorf("%w: timeout", core.ErrTransientIO)}}
	body := `{"Records":[` +
		`{"s3":{"bucket":{"name":"geo"},"object":{"key":"good.json"}}},` +
		`{"s3":{"bucket":{"name":"geo"},"object":{"key":12}}}]}`

	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).Return(receiving(message("m10", body)), nil).Once()

	p := newTestPoller(t, client, ing)
	assert.ErrorIs(t, p.PollOnce(context.Background()), core.ErrTransientIO)
	client.AssertNotCalled(t, "DeleteMessageWithContext", mock.Anything, mock.Anything)
}

func TestPollOnce_UndecodableMessageDeleted(t *testing.T) {
	client := &mockSQS{}
	ing := &fakeIngester{}
	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).Return(receiving(message("m4", "garbage")), nil).Once()
	client.On("DeleteMessageWithContext", mock.Anything, deleteOf("m4")).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	p := newTestPoller(t, client, ing)
	require.NoError(t, p.PollOnce(context.Background()))
	assert.Empty(t, ing.called())
	client.AssertExpectations(t)
}

func TestPollOnce_TestEventDeleted(t *testing.T) {
	client := &mockSQS{}
	ing := &fakeIngester{}
	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).
		Return(receiving(message("m5", `{"Service":"Amazon S3","Event":"s3:TestEvent"}`)), nil).Once()
	client.On("DeleteMessageWithContext", mock.Anything, deleteOf("m5")).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	p := newTestPoller(t, client, ing)
	require.NoError(t, p.PollOnce(context.Background()))
	assert.Empty(t, ing.called())
	client.AssertExpectations(t)
}

func TestPollOnce_ReceiveError(t *testing.T) {
	client := &mockSQS{}
	receiveErr := errors.New("RequestError: send request failed")
	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).Return(nil, receiveErr).Once()

	p := newTestPoller(t, client, &fakeIngester{})
	err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, receiveErr)
}

func TestPollOnce_DeleteError(t *testing.T) {
	client := &mockSQS{}
	deleteErr := errors.New("ReceiptHandleIsInvalid")
	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).
		Return(receiving(message("m6", s3Event([2]string{"geo", "a.json"}))), nil).Once()
	client.On("DeleteMessageWithContext", mock.Anything, deleteOf("m6")).Return(nil, deleteErr).Once()

	p := newTestPoller(t, client, &fakeIngester{})
	err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, deleteErr)
}

func TestRun_SurvivesFailuresUntilCanceled(t *testing.T) {
	client := &mockSQS{}
	failing := core.Location{Bucket: "geo", Key: "bad.json"}
	ing := &fakeIngester{errs: map[core.Location]error{failing: core.ErrSchema}}
	ctx, cancel := context.WithCancel(context.Background())

	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).
		Return(nil, errors.New("throttled")).Once()
	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).
		Return(receiving(message("m7", s3Event([2]string{"geo", "bad.json"}))), nil).Once()
	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).
		Return(receiving(message("m8", s3Event([2]string{"geo", "good.json"}))), nil).Once()
	client.On("DeleteMessageWithContext", mock.Anything, deleteOf("m8")).
		Return(&sqs.DeleteMessageOutput{}, nil).Once()
	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	p := newTestPoller(t, client, ing)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}

	assert.Equal(t, []core.Location{failing, {Bucket: "geo", Key: "good.json"}}, ing.called())
	client.AssertNotCalled(t, "DeleteMessageWithContext", mock.Anything, deleteOf("m7"))
	client.AssertExpectations(t)
}

func TestRun_CanceledDuringBackoff(t *testing.T) {
	client := &mockSQS{}
	client.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).Return(nil, errors.New("unreachable"))

	p, err := NewPoller(client, testQueueURL, &fakeIngester{},
		WithBackOff(backoff.NewConstantBackOff(time.Hour)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, p.Run(ctx))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestResolveQueueURL(t *testing.T) {
	client := &mockSQS{}
	client.On("GetQueueUrlWithContext", mock.Anything, mock.MatchedBy(func(input *sqs.GetQueueUrlInput) bool {
		return aws.StringValue(input.QueueName) == "geo-uploads"
	})).Return(&sqs.GetQueueUrlOutput{QueueUrl: aws.String(testQueueURL)}, nil).Once()

	url, err := ResolveQueueURL(context.Background(), client, "geo-uploads")
	require.NoError(t, err)
	assert.Equal(t, testQueueURL, url)

	url, err = ResolveQueueURL(context.Background(), client, testQueueURL)
	require.NoError(t, err)
	assert.Equal(t, testQueueURL, url)

	_, err = ResolveQueueURL(context.Background(), client, "")
	assert.ErrorIs(t, err, ErrQueueURLRequired)

	client.AssertExpectations(t)
}
