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
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
)

// AWSOptions holds the settings used to build an AWS session.
type AWSOptions struct {
	Region   string
	Profile  string
	Endpoint string // custom endpoint, e.g. LocalStack or MinIO
	// MaxRetries bounds the SDK's retries of ephemeral AWS errors.
	// Default: 3
	MaxRetries int
}

// NewAWSSession creates a session shared by the S3 and SQS clients.
func NewAWSSession(opts AWSOptions) (*session.Session, error) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	config := &aws.Config{
		// retry on ephemeral AWS errors
		Retryer: client.DefaultRetryer{NumMaxRetries: maxRetries},
	}
	if opts.Profile != "" {
		slog.Info("overriding default AWS profile", "profile", opts.Profile)
		config.Credentials = credentials.NewSharedCredentials("", opts.Profile)
	}
	if opts.Region != "" {
		config.Region = aws.String(opts.Region)
	}
	if opts.Endpoint != "" {
		slog.Info("using custom AWS endpoint", "endpoint", opts.Endpoint)
		config.Endpoint = aws.String(opts.Endpoint)
		config.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return sess, nil
}
