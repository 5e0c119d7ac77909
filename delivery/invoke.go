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
	"net/http"
	"strings"
	"sync"

	"github.com/poiesic/geoingest/core"
	"github.com/poiesic/geoingest/storage"
)

// Response is the result of one direct invocation.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Invoker handles S3 events delivered synchronously, one call per event.
type Invoker struct {
	ingester     Ingester
	bootstrapper storage.Bootstrapper
	logger       *slog.Logger

	mu           sync.Mutex
	bootstrapped bool
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker) error

// WithBootstrap makes the first call prepare the store before ingesting.
// A failed bootstrap is retried on the next call.
func WithBootstrap(b storage.Bootstrapper) InvokerOption {
	return func(inv *Invoker) error {
		inv.bootstrapper = b
		return nil
	}
}

// WithInvokerLogger sets a custom logger.
// Default is slog.Default().
func WithInvokerLogger(logger *slog.Logger) InvokerOption {
	return func(inv *Invoker) error {
		if logger == nil {
			logger = slog.Default()
		}
		inv.logger = logger
		return nil
	}
}

// NewInvoker creates an Invoker.
func NewInvoker(ingester Ingester, opts ...InvokerOption) (*Invoker, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}

	inv := &Invoker{
		ingester: ingester,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(inv); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// Handle ingests every document the event references, in order.
//
// The response is 200 "Success" when each document was ingested or was
// rejected for having no features, 400 when the event is not JSON, and 500
// listing the failed documents otherwise. Every document is attempted even
// after an earlier one fails.
func (inv *Invoker) Handle(ctx context.Context, event []byte) Response {
	if err := inv.bootstrap(ctx); err != nil {
		inv.logger.Error("error preparing store", "err", err)
		return Response{StatusCode: http.StatusInternalServerError, Body: err.Error()}
	}

	locations, skipped, err := decodeEnvelope(event)
	if err != nil {
		inv.logger.Error("rejecting invocation", "err", err)
		return Response{StatusCode: http.StatusBadRequest, Body: err.Error()}
	}
	for _, skip := range skipped {
		inv.logger.Warn("skipping event record", "err", skip)
	}

	var failures []string
	for _, loc := range locations {
		inv.logger.Info("processing document", "source", loc.String())
		result, err := inv.ingester.Ingest(ctx, loc)
		switch {
		case errors.Is(err, core.ErrSchema):
			inv.logger.Warn("skipping document without features", "source", loc.String(), "err", err)
		case err != nil:
			inv.logger.Error("error processing document", "source", loc.String(), "err", err)
			failures = append(failures, fmt.Sprintf("%s: %v", loc, err))
		default:
			inv.logger.Info("loaded document",
				"source", loc.String(),
				"inserted", result.Inserted,
				"failed", result.Failed)
		}
	}

	if len(failures) > 0 {
		return Response{StatusCode: http.StatusInternalServerError, Body: strings.Join(failures, "; ")}
	}
	return Response{StatusCode: http.StatusOK, Body: "Success"}
}

func (inv *Invoker) bootstrap(ctx context.Context) error {
	if inv.bootstrapper == nil {
		return nil
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.bootstrapped {
		return nil
	}
	if err := inv.bootstrapper.Bootstrap(ctx); err != nil {
		return err
	}
	inv.bootstrapped = true
	return nil
}
