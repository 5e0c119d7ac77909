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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/poiesic/geoingest/core"
	"github.com/poiesic/geoingest/fetch"
	"github.com/poiesic/geoingest/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultStatusRecords = 10

type server struct {
	ingester      DocumentIngester
	reader        storage.RecordReader
	maxBodySize   int64
	statusRecords int
	logger        *slog.Logger
}

// HandlerOption configures the HTTP handler.
type HandlerOption func(*server) error

// WithMaxBodySize bounds the size of a posted document.
// Default is fetch.DefaultMaxObjectSize.
func WithMaxBodySize(size int64) HandlerOption {
	return func(s *server) error {
		if size <= 0 {
			return fmt.Errorf("max body size must be positive, got %d", size)
		}
		s.maxBodySize = size
		return nil
	}
}

// WithStatusRecords sets how many recent records the status page lists.
func WithStatusRecords(n int) HandlerOption {
	return func(s *server) error {
		if _, err := storage.ClampLimit(n); err != nil {
			return fmt.Errorf("status records: %w", err)
		}
		s.statusRecords = n
		return nil
	}
}

// WithHandlerLogger sets a custom logger.
// Default is slog.Default().
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(s *server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewHandler returns the HTTP surface of the service:
//
//	POST /ingest   store the features of the posted document
//	GET  /         status page
//	GET  /healthz  liveness
//	GET  /metrics  Prometheus metrics
func NewHandler(ingester DocumentIngester, reader storage.RecordReader, opts ...HandlerOption) (http.Handler, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	if reader == nil {
		return nil, ErrReaderRequired
	}

	s := &server{
		ingester:      ingester,
		reader:        reader,
		maxBodySize:   fetch.DefaultMaxObjectSize,
		statusRecords: defaultStatusRecords,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	router := mux.NewRouter()
	router.HandleFunc("/ingest", s.postIngest).Methods("POST").Name("PostIngest")
	router.HandleFunc("/", s.getStatus).Methods("GET").Name("GetStatus")
	router.HandleFunc("/healthz", s.getHealth).Methods("GET").Name("GetHealth")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET").Name("GetMetrics")

	return router, nil
}

type ingestResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Failed int    `json:"failed"`
}

// POST /ingest
func (s *server) postIngest(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxBodySize)
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("document exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read request body"})
		return
	}
	if !utf8.Valid(raw) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": core.ErrMalformedDocument.Error() + ": not valid UTF-8"})
		return
	}

	source := "http://" + r.RemoteAddr
	result, err := s.ingester.IngestDocument(r.Context(), source, raw)
	if err != nil {
		status := http.StatusInternalServerError
		if core.IsClientError(err) {
			status = http.StatusBadRequest
		}
		s.logger.Error("ingest request failed", "source", source, "status", status, "err", err)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	// Nothing stored and the store was part of why
	if result.Inserted == 0 && result.Unavailable > 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": core.ErrStoreUnavailable.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Status: "success",
		Count:  result.Inserted,
		Failed: result.Failed,
	})
}

// GET /healthz
func (s *server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
