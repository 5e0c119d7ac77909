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


package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Delay is the wait after the first failure. It doubles after each
	// further failure.
	Delay time.Duration
	// MaxDelay caps the wait. Zero means no cap.
	MaxDelay time.Duration
	// Logger receives one line per failed attempt. Default is slog.Default().
	Logger *slog.Logger
}

// newBackOff returns the unjittered doubling schedule described by p.
func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Delay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = p.MaxDelay
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = time.Duration(math.MaxInt64)
	}
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}

// Do calls op until it succeeds, the attempts run out or ctx is done.
// It returns the last error from op, or ctx's error if ctx ended first.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		return ErrInvalidAttempts
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attempt := 0
	schedule := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(p.Attempts-1)), ctx)
	err := backoff.RetryNotify(func() error {
		attempt++
		return op(ctx)
	}, schedule, func(err error, delay time.Duration) {
		logger.Warn("retrying", "op", name, "attempt", attempt, "of", p.Attempts, "in", delay, "err", err)
	})
	if err == nil && attempt > 1 {
		logger.Info("retry succeeded", "op", name, "attempt", attempt)
	}
	return err
}
