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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/geoingest/core"
	"github.com/poiesic/geoingest/fetch"
	"github.com/poiesic/geoingest/geojson"
	"github.com/poiesic/geoingest/storage"
)

// Pipeline ingests GeoJSON documents into a feature repository.
// It is safe for concurrent use as long as the repository and fetcher are.
type Pipeline struct {
	repository storage.FeatureWriter
	fetcher    fetch.Fetcher
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repository storage.FeatureWriter, fetcher fetch.Fetcher, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}

	p := &Pipeline{
		repository: repository,
		fetcher:    fetcher,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Ingest fetches the document at loc and stores its features.
//
// Document-level failures (core.ErrInvalidLocation, core.ErrNotFound,
// core.ErrTransientIO, core.ErrMalformedDocument, core.ErrSchema) are
// returned with a nil result. Otherwise the result reports how many
// features were stored and how many failed; see IngestDocument for when an
// error accompanies it.
func (p *Pipeline) Ingest(ctx context.Context, loc core.Location) (*core.IngestResult, error) {
	start := time.Now()

	if err := core.ValidateLocation(loc); err != nil {
		p.finish(start, err)
		return nil, fmt.Errorf("%w: %q", err, loc.String())
	}

	p.logger.Debug("fetching document", "source", loc.String())
	raw, err := p.fetcher.Fetch(ctx, loc)
	if err != nil {
		p.logger.Error("error fetching document", "source", loc.String(), "err", err)
		p.finish(start, err)
		return nil, fmt.Errorf("fetching %s: %w", loc, err)
	}

	return p.ingest(ctx, loc.String(), raw, start)
}

// IngestDocument stores the features of an already loaded document.
// source names the document in logs and in the result.
//
// If the document has features, none of them were stored and every failure
// was core.ErrStoreUnavailable, the result is returned together with an
// error wrapping core.ErrStoreUnavailable: nothing was lost to bad data, so
// the delivery should be retried rather than acknowledged. Cancelling ctx
// stops the document between features with the same error.
func (p *Pipeline) IngestDocument(ctx context.Context, source string, raw []byte) (*core.IngestResult, error) {
	return p.ingest(ctx, source, raw, time.Now())
}

func (p *Pipeline) ingest(ctx context.Context, source string, raw []byte, start time.Time) (*core.IngestResult, error) {
	collection, err := geojson.Parse(raw)
	if err != nil {
		p.logger.Error("error parsing document", "source", source, "err", err)
		p.finish(start, err)
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}

	result := &core.IngestResult{
		Source: source,
		Digest: core.DigestOf(raw),
	}
	logger := p.logger.With("source", source, "digest", result.Digest.String())
	logger.Info("ingesting document", "features", len(collection.Features))

	for i, feature := range collection.Features {
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Duration = time.Since(start)
			err := fmt.Errorf("%w: stopped at feature %d: %w", core.ErrStoreUnavailable, i, ctxErr)
			logger.Warn("document interrupted", "index", i, "inserted", result.Inserted, "err", ctxErr)
			p.finish(start, err)
			return result, err
		}

		id, err := p.repository.InsertFeature(ctx, feature.Properties, feature.Geometry)
		if err != nil {
			result.Failed++
			if errors.Is(err, core.ErrStoreUnavailable) {
				result.Unavailable++
			}
			CounterFeaturesFailed.WithLabelValues(failureReason(err)).Inc()
			logger.Error("error storing feature", "index", i, "err", err)
			continue
		}

		result.Inserted++
		CounterFeaturesInserted.Inc()
		logger.Debug("stored feature", "index", i, "id", id)
	}
	result.Duration = time.Since(start)

	if result.Total() > 0 && result.Inserted == 0 && result.Unavailable == result.Failed {
		err := fmt.Errorf("%w: none of %d features from %s stored", core.ErrStoreUnavailable, result.Total(), source)
		logger.Error("document not stored", "failed", result.Failed, "err", err)
		p.finish(start, err)
		return result, err
	}

	logger.Info("ingested document",
		"inserted", result.Inserted,
		"failed", result.Failed,
		"elapsed", result.Duration)
	p.finish(start, nil)
	return result, nil
}

func (p *Pipeline) finish(start time.Time, err error) {
	CounterDocuments.WithLabelValues(documentOutcome(err)).Inc()
	HistogramDocumentDuration.Observe(time.Since(start).Seconds())
}
