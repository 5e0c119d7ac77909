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
	"errors"

	"github.com/poiesic/geoingest/core"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricDocuments        = "documents_total"
	MetricFeaturesInserted = "features_inserted_total"
	MetricFeaturesFailed   = "features_failed_total"
	MetricDocumentDuration = "document_duration_seconds"
)

// Document outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeTransientIO = "transient_io"
	OutcomeMalformed   = "malformed"
	OutcomeSchema      = "schema"
	OutcomeUnavailable = "store_unavailable"
	OutcomeInvalid     = "invalid_location"
)

// Feature failure reasons
const (
	ReasonGeometry    = "geometry"
	ReasonUnavailable = "store_unavailable"
	ReasonOther       = "other"
)

var CounterDocuments = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "geoingest",
		Name:      MetricDocuments,
		Help:      "Documents processed, by outcome.",
	},
	[]string{"outcome"},
)

var CounterFeaturesInserted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "geoingest",
		Name:      MetricFeaturesInserted,
		Help:      "Features stored.",
	},
)

var CounterFeaturesFailed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "geoingest",
		Name:      MetricFeaturesFailed,
		Help:      "Features that could not be stored, by reason.",
	},
	[]string{"reason"},
)

var HistogramDocumentDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "geoingest",
		Name:      MetricDocumentDuration,
		Help:      "Time spent fetching, parsing and storing one document.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	},
)

func init() {
	prometheus.MustRegister(CounterDocuments)
	prometheus.MustRegister(CounterFeaturesInserted)
	prometheus.MustRegister(CounterFeaturesFailed)
	prometheus.MustRegister(HistogramDocumentDuration)
}

func documentOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, core.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, core.ErrTransientIO):
		return OutcomeTransientIO
	case errors.Is(err, core.ErrMalformedDocument):
		return OutcomeMalformed
	case errors.Is(err, core.ErrSchema):
		return OutcomeSchema
	case errors.Is(err, core.ErrInvalidLocation):
		return OutcomeInvalid
	default:
		return OutcomeUnavailable
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, core.ErrGeometryConversion):
		return ReasonGeometry
	case errors.Is(err, core.ErrStoreUnavailable):
		return ReasonUnavailable
	default:
		return ReasonOther
	}
}
