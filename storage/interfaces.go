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


package storage

import (
	"context"
	"encoding/json"

	"github.com/poiesic/geoingest/core"
)

// MaxRecentLimit caps the number of records ListRecent returns.
const MaxRecentLimit = 100

// Bootstrapper prepares the schema a repository needs.
type Bootstrapper interface {
	// Bootstrap creates whatever the backend needs to store features.
	// It is idempotent and safe to call concurrently from several processes.
	Bootstrap(ctx context.Context) error
}

// FeatureWriter persists features.
type FeatureWriter interface {
	// InsertFeature stores one feature and returns its assigned ID.
	// properties is stored as opaque JSON (absent properties as JSON null).
	// geometry is a GeoJSON geometry object; it is converted into the
	// backend's geometry type and assigned SRID 4326.
	// Returns core.ErrGeometryConversion if the geometry cannot be converted
	// and core.ErrStoreUnavailable for connectivity or transaction failures.
	InsertFeature(ctx context.Context, properties, geometry json.RawMessage) (core.ID, error)
}

// RecordReader provides the read-only views used by the status page.
type RecordReader interface {
	// CountRecords returns the number of stored records.
	CountRecords(ctx context.Context) (int64, error)

	// ListRecent returns up to limit records, newest first.
	// limit must be positive; values above MaxRecentLimit are capped.
	// Returns ErrInvalidQuery for a non-positive limit.
	ListRecent(ctx context.Context, limit int) ([]*core.Record, error)
}

// FeatureRepository combines all storage operations of a backend.
// Implementations must be thread-safe and support concurrent access.
type FeatureRepository interface {
	Bootstrapper
	FeatureWriter
	RecordReader

	// Close releases the backend's resources.
	Close() error
}

// ClampLimit validates a ListRecent limit and caps it at MaxRecentLimit.
func ClampLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, ErrInvalidQuery
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit, nil
	}
	return limit, nil
}
