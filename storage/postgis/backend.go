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


package postgis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/geoingest/core"
	"github.com/poiesic/geoingest/retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultConnectAttempts = 5
	defaultConnectDelay    = time.Second
	maxConnectDelay        = 30 * time.Second
	defaultMaxOpenConns    = 10
)

type openOptions struct {
	attempts     int
	delay        time.Duration
	maxOpenConns int
	logger       *slog.Logger
}

// Option configures Open.
type Option func(*openOptions)

// WithConnectRetry sets how many times Open tries to reach the database and
// the base delay between attempts, which doubles after each failure.
func WithConnectRetry(attempts int, delay time.Duration) Option {
	return func(o *openOptions) {
		if attempts > 0 {
			o.attempts = attempts
		}
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *openOptions) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open connects to PostgreSQL, retrying while the database is unreachable.
// Failing to connect after every attempt is reported as core.ErrStoreUnavailable.
func Open(ctx context.Context, dsn string, opts ...Option) (*Repository, error) {
	o := &openOptions{
		attempts:     defaultConnectAttempts,
		delay:        defaultConnectDelay,
		maxOpenConns: defaultMaxOpenConns,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	var db *gorm.DB
	policy := retry.Policy{Attempts: o.attempts, Delay: o.delay, MaxDelay: maxConnectDelay, Logger: o.logger}
	err := policy.Do(ctx, "connect postgis", func(context.Context) error {
		conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: newGormLogger(o.logger),
		})
		if err != nil {
			if conn != nil {
				if sqlDB, dbErr := conn.DB(); dbErr == nil {
					sqlDB.Close()
				}
			}
			return err
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting after %d attempts: %w", core.ErrStoreUnavailable, o.attempts, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(o.maxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return newRepository(db, o.logger), nil
}
