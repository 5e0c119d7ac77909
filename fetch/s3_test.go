package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/poiesic/geoingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockS3 implements the GetObject call of s3iface.S3API.
type mockS3 struct {
	s3iface.S3API
	mock.Mock
}

func (m *mockS3) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func objectFor(bucket, key string) interface{} {
	return mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return aws.StringValue(input.Bucket) == bucket && aws.StringValue(input.Key) == key
	})
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingReader) Close() error              { return nil }

func TestNewS3Fetcher_RequiresClient(t *testing.T) {
	f, err := NewS3Fetcher(nil)
	assert.ErrorIs(t, err, ErrS3ClientRequired)
	assert.Nil(t, f)
}

func TestS3Fetcher_Fetch(t *testing.T) {
	client := &mockS3{}
	client.On("GetObjectWithContext", mock.Anything, objectFor("uploads", "a.geojson")).
		Return(&s3.GetObjectOutput{Body: body(`{"features":[]}`)}, nil)

	f, err := NewS3Fetcher(client)
	require.NoError(t, err)

	data, err := f.Fetch(context.Background(), core.Location{Bucket: "uploads", Key: "a.geojson"})
	require.NoError(t, err)
	assert.Equal(t, `{"features":[]}`, string(data))
	client.AssertExpectations(t)
}

func TestS3Fetcher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		output  *s3.GetObjectOutput
		err     error
		wantErr error
	}{
		{
			name:    "no such key",
			err:     awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil),
			wantErr: core.ErrNotFound,
		},
		{
			name:    "no such bucket",
			err:     awserr.New(s3.ErrCodeNoSuchBucket, "The specified bucket does not exist", nil),
			wantErr: core.ErrNotFound,
		},
		{
			name:    "404 request failure",
			err:     awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), http.StatusNotFound, "req-1"),
			wantErr: core.ErrNotFound,
		},
		{
			name:    "throttled",
			err:     awserr.NewRequestFailure(awserr.New("SlowDown", "Please reduce your request rate.", nil), http.StatusServiceUnavailable, "req-2"),
			wantErr: core.ErrTransientIO,
		},
		{
			name:    "network failure",
			err:     errors.New("dial tcp: connection refused"),
			wantErr: core.ErrTransientIO,
		},
		{
			name:    "body read failure",
			output:  &s3.GetObjectOutput{Body: failingReader{}},
			wantErr: core.ErrTransientIO,
		},
		{
			name:    "invalid utf-8",
			output:  &s3.GetObjectOutput{Body: body("\xff\xfe{}")},
			wantErr: core.ErrMalformedDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockS3{}
			client.On("GetObjectWithContext", mock.Anything, mock.Anything).Return(tt.output, tt.err)

			f, err := NewS3Fetcher(client)
			require.NoError(t, err)

			data, err := f.Fetch(context.Background(), core.Location{Bucket: "uploads", Key: "a.geojson"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, data)
		})
	}
}

func TestS3Fetcher_MaxObjectSize(t *testing.T) {
	client := &mockS3{}
	client.On("GetObjectWithContext", mock.Anything, mock.Anything).
		Return(&s3.GetObjectOutput{Body: body(strings.Repeat("x", 32))}, nil)

	f, err := NewS3Fetcher(client, WithMaxObjectSize(16))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), core.Location{Bucket: "uploads", Key: "big.geojson"})
	assert.ErrorIs(t, err, core.ErrMalformedDocument)
}

func TestS3Fetcher_MissingBucket(t *testing.T) {
	client := &mockS3{}
	f, err := NewS3Fetcher(client)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), core.Location{Key: "a.geojson"})
	assert.ErrorIs(t, err, core.ErrNotFound)
	client.AssertNotCalled(t, "GetObjectWithContext", mock.Anything, mock.Anything)
}
