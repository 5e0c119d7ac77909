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


package geoingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/geoingest/config"
	"github.com/poiesic/geoingest/fetch"
	"github.com/poiesic/geoingest/ingestion"
	"github.com/poiesic/geoingest/storage"
	"github.com/poiesic/geoingest/storage/badger"
	"github.com/poiesic/geoingest/storage/postgis"
)

// Database owns the feature store of a process. It is opened once at
// startup and closed at shutdown.
type Database struct {
	repo    storage.FeatureRepository
	backend *badger.Backend
	logger  *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	logger        *slog.Logger
	skipBootstrap bool
	retryDelay    time.Duration
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithoutBootstrap skips schema creation when opening.
func WithoutBootstrap() DatabaseOption {
	return func(o *databaseOptions) {
		o.skipBootstrap = true
	}
}

// WithRetryDelay sets the base delay between connection attempts.
func WithRetryDelay(d time.Duration) DatabaseOption {
	return func(o *databaseOptions) {
		o.retryDelay = d
	}
}

// NewDatabase opens the store cfg selects and prepares its schema.
func NewDatabase(ctx context.Context, cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		logger:     slog.Default(),
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(options)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db := &Database{logger: options.logger}
	switch cfg.Backend {
	case config.BackendBadger:
		backend, err := badger.OpenBackend(cfg.BadgerPath, badger.WithBackendLogger(options.logger))
		if err != nil {
			return nil, err
		}
		repo, err := badger.NewRepository(backend)
		if err != nil {
			backend.Close()
			return nil, err
		}
		db.backend = backend
		db.repo = repo
	default:
		repo, err := postgis.Open(ctx, cfg.DSN(),
			postgis.WithConnectRetry(cfg.ConnectAttempts, options.retryDelay),
			postgis.WithLogger(options.logger))
		if err != nil {
			return nil, err
		}
		db.repo = repo
	}
	options.logger.Info("store opened", "backend", cfg.Backend)

	if !options.skipBootstrap {
		if err := db.repo.Bootstrap(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Close releases the store.
func (db *Database) Close() error {
	if err := db.repo.Close(); err != nil {
		db.logger.Error("error closing repository", "err", err)
		return err
	}
	if db.backend != nil {
		if err := db.backend.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}

// Repository returns the open feature store. It stays owned by db and is
// closed by Close.
func (db *Database) Repository() storage.FeatureRepository {
	return db.repo
}

// NewIngestionPipeline creates a pipeline that fetches documents with
// fetcher and stores their features in db's repository. The pipeline logs
// to db's logger unless opts override it.
func (db *Database) NewIngestionPipeline(fetcher fetch.Fetcher, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(db.logger)}, opts...)
	return ingestion.NewPipeline(db.repo, fetcher, opts...)
}
