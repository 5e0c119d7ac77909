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


package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/geoingest/core"
)

const (
	// DefaultWaitTime is the long-poll duration of one receive call.
	DefaultWaitTime = 20 * time.Second

	DefaultInitialBackoff = 5 * time.Second
	DefaultMaxBackoff     = time.Minute
)

// Poller consumes S3 event notifications from an SQS queue, one message at
// a time.
type Poller struct {
	client   sqsiface.SQSAPI
	queueURL string
	ingester Ingester
	waitTime time.Duration
	backoff  backoff.BackOff
	logger   *slog.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller) error

// MinWaitTime is the shortest long-poll accepted. Receives are counted in
// whole seconds, and a zero wait would turn Run into a busy loop.
const MinWaitTime = time.Second

// WithWaitTime sets the long-poll duration, between 1 and 20 seconds.
func WithWaitTime(d time.Duration) PollerOption {
	return func(p *Poller) error {
		if d < MinWaitTime || d > DefaultWaitTime {
			return fmt.Errorf("wait time %s out of range [1s, 20s]", d)
		}
		p.waitTime = d
		return nil
	}
}

// WithBackOff sets the delay policy applied after a failed iteration.
// Default is exponential from 5s up to 1m, never giving up.
func WithBackOff(b backoff.BackOff) PollerOption {
	return func(p *Poller) error {
		if b != nil {
			p.backoff = b
		}
		return nil
	}
}

// WithPollerLogger sets a custom logger.
// Default is slog.Default().
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPoller creates a Poller reading from queueURL.
func NewPoller(client sqsiface.SQSAPI, queueURL string, ingester Ingester, opts ...PollerOption) (*Poller, error) {
	if client == nil {
		return nil, ErrQueueClientRequired
	}
	if queueURL == "" {
		return nil, ErrQueueURLRequired
	}
	if ingester == nil {
		return nil, ErrIngesterRequired
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = DefaultInitialBackoff
	expBackoff.MaxInterval = DefaultMaxBackoff
	expBackoff.MaxElapsedTime = 0

	p := &Poller{
		client:   client,
		queueURL: queueURL,
		ingester: ingester,
		waitTime: DefaultWaitTime,
		backoff:  expBackoff,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.backoff.Reset()

	return p, nil
}

// Run polls until ctx is cancelled. A failed iteration never stops the
// loop; it delays the next one according to the backoff policy.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling queue", "queue", p.queueURL, "wait", p.waitTime)

	for {
		err := p.PollOnce(ctx)
		if ctx.Err() != nil {
			p.logger.Info("poller stopped", "queue", p.queueURL)
			return nil
		}
		if err == nil {
			p.backoff.Reset()
			continue
		}

		delay := p.backoff.NextBackOff()
		if delay == backoff.Stop {
			delay = DefaultMaxBackoff
		}
		p.logger.Warn("poll iteration failed", "retry_in", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("poller stopped", "queue", p.queueURL)
			return nil
		case <-timer.C:
		}
	}
}

// PollOnce performs one long-poll receive and processes what it returns.
// An empty receive is not an error.
func (p *Poller) PollOnce(ctx context.Context) error {
	out, err := p.client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.queueURL),
		MaxNumberOfMessages: aws.Int64(1),
		WaitTimeSeconds:     aws.Int64(int64(p.waitTime / time.Second)),
	})
	if err != nil {
		return fmt.Errorf("receiving from %s: %w", p.queueURL, err)
	}

	var errs []error
	for _, msg := range out.Messages {
		if err := p.handleMessage(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notification is one received queue message with the document locations
// its body references. The receipt handle is used only to acknowledge it.
type Notification struct {
	MessageID     string
	ReceiptHandle string
	Body          string
	Locations     []core.Location

	// Skipped explains each envelope record that could not be decoded.
	Skipped []error
}

// NewNotification decodes the envelope carried by msg. The returned
// Notification is usable for acknowledgment even when decoding fails.
func NewNotification(msg *sqs.Message) (*Notification, error) {
	n := &Notification{
		MessageID:     aws.StringValue(msg.MessageId),
		ReceiptHandle: aws.StringValue(msg.ReceiptHandle),
		Body:          aws.StringValue(msg.Body),
	}
	locations, skipped, err := decodeEnvelope([]byte(n.Body))
	if err != nil {
		return n, err
	}
	n.Locations = locations
	n.Skipped = skipped
	return n, nil
}

func (p *Poller) handleMessage(ctx context.Context, msg *sqs.Message) error {
	n, err := NewNotification(msg)
	logger := p.logger.With("message_id", n.MessageID)
	if err != nil {
		logger.Error("discarding undecodable message", "err", err)
		return p.delete(ctx, n)
	}
	for _, skip := range n.Skipped {
		logger.Warn("skipping envelope record", "err", skip)
	}
	if len(n.Locations) == 0 {
		logger.Info("message references no documents")
		return p.delete(ctx, n)
	}

	for _, loc := range n.Locations {
		result, err := p.ingester.Ingest(ctx, loc)
		if err != nil {
			if core.IsDocumentError(err) {
				logger.Warn("document rejected, leaving message for redelivery", "source", loc.String(), "err", err)
			} else {
				logger.Error("leaving message for redelivery", "source", loc.String(), "err", err)
			}
			return fmt.Errorf("message %s: %w", n.MessageID, err)
		}
		logger.Info("document delivered",
			"source", loc.String(),
			"inserted", result.Inserted,
			"failed", result.Failed)
	}

	return p.delete(ctx, n)
}

func (p *Poller) delete(ctx context.Context, n *Notification) error {
	_, err := p.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.queueURL),
		ReceiptHandle: aws.String(n.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("deleting message %s: %w", n.MessageID, err)
	}
	return nil
}

// ResolveQueueURL returns nameOrURL unchanged if it is already a URL and
// otherwise looks the queue up by name.
func ResolveQueueURL(ctx context.Context, client sqsiface.SQSAPI, nameOrURL string) (string, error) {
	if nameOrURL == "" {
		return "", ErrQueueURLRequired
	}
	if strings.Contains(nameOrURL, "://") {
		return nameOrURL, nil
	}

	out, err := client.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(nameOrURL),
	})
	if err != nil {
		return "", fmt.Errorf("resolving queue %q: %w", nameOrURL, err)
	}
	return aws.StringValue(out.QueueUrl), nil
}
