// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/poiesic/geoingest/core"
)

// DefaultMaxObjectSize bounds how much of an object is read into memory.
const DefaultMaxObjectSize int64 = 64 << 20

// S3Fetcher reads documents from S3.
type S3Fetcher struct {
	client  s3iface.S3API
	maxSize int64
}

var _ Fetcher = (*S3Fetcher)(nil)

// S3Option configures an S3Fetcher.
type S3Option func(*S3Fetcher)

// WithMaxObjectSize sets the largest object the fetcher accepts.
// Larger objects are rejected as malformed documents.
func WithMaxObjectSize(size int64) S3Option {
	return func(f *S3Fetcher) {
		if size > 0 {
			f.maxSize = size
		}
	}
}

// NewS3Fetcher creates a fetcher over an S3 client.
func NewS3Fetcher(client s3iface.S3API, opts ...S3Option) (*S3Fetcher, error) {
	if client == nil {
		return nil, ErrS3ClientRequired
	}
	f := &S3Fetcher{
		client:  client,
		maxSize: DefaultMaxObjectSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch downloads the object at loc.
func (f *S3Fetcher) Fetch(ctx context.Context, loc core.Location) ([]byte, error) {
	if loc.Bucket == "" {
		return nil, fmt.Errorf("%w: %s has no bucket", core.ErrNotFound, loc)
	}

	result, err := f.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s: %w", core.ErrNotFound, loc, err)
		}
		return nil, fmt.Errorf("%w: fetching %s: %w", core.ErrTransientIO, loc, err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(io.LimitReader(result.Body, f.maxSize+1)); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", core.ErrTransientIO, loc, err)
	}
	if int64(buf.Len()) > f.maxSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", core.ErrMalformedDocument, loc, f.maxSize)
	}

	return checkText(loc, buf.Bytes())
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	return false
}

// checkText rejects bodies that are not UTF-8 text.
func checkText(loc core.Location, body []byte) ([]byte, error) {
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: %s is not UTF-8 text", core.ErrMalformedDocument, loc)
	}
	return body, nil
}
