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
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/geoingest/core"
	"github.com/poiesic/geoingest/geojson"
	"github.com/poiesic/geoingest/storage"
	"gorm.io/gorm"
)

// bootstrapLockKey serializes schema creation across processes.
const bootstrapLockKey int64 = 0x67656f696e67

const (
	createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS postgis`

	createTableSQL = `CREATE TABLE IF NOT EXISTS geospatial_data (
    id SERIAL PRIMARY KEY,
    properties JSONB,
    geom GEOMETRY(Geometry, 4326),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

	insertFeatureSQL = `INSERT INTO geospatial_data (properties, geom)
VALUES (CAST(? AS JSONB), ST_SetSRID(ST_GeomFromGeoJSON(?), 4326))
RETURNING id`

	countRecordsSQL = `SELECT COUNT(*) FROM geospatial_data`

	listRecentSQL = `SELECT id,
    properties::text AS properties,
    ST_AsGeoJSON(geom) AS geometry,
    ST_SRID(geom) AS srid,
    created_at
FROM geospatial_data
ORDER BY id DESC
LIMIT ?`
)

// Repository implements storage.FeatureRepository on PostGIS.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ storage.FeatureRepository = (*Repository)(nil)

func newRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// NewRepository wraps an already opened gorm connection.
func NewRepository(db *gorm.DB) *Repository {
	return newRepository(db, slog.Default())
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Bootstrap enables PostGIS and creates the features table.
// Concurrent callers queue on a transaction-scoped advisory lock.
func (r *Repository) Bootstrap(ctx context.Context) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", bootstrapLockKey).Error; err != nil {
			return err
		}
		if err := tx.Exec(createExtensionSQL).Error; err != nil {
			return err
		}
		return tx.Exec(createTableSQL).Error
	})
	if err != nil {
		return fmt.Errorf("%w: bootstrap: %w", core.ErrStoreUnavailable, err)
	}
	r.logger.Debug("schema ready", "table", "geospatial_data")
	return nil
}

// InsertFeature stores one feature. The statement runs in its own implicit
// transaction, so a failure leaves no partial row behind.
func (r *Repository) InsertFeature(ctx context.Context, properties, geometry json.RawMessage) (core.ID, error) {
	// Reject what orb cannot read before spending a round trip
	if _, err := geojson.ConvertGeometry(geometry); err != nil {
		return 0, err
	}

	var id int64
	err := r.db.WithContext(ctx).
		Raw(insertFeatureSQL, string(geojson.NormalizeProperties(properties)), string(geometry)).
		Scan(&id).Error
	if err != nil {
		return 0, classifyError(err)
	}
	return core.ID(id), nil
}

// CountRecords returns the number of rows in geospatial_data.
func (r *Repository) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw(countRecordsSQL).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: count: %w", core.ErrStoreUnavailable, err)
	}
	return count, nil
}

type recordRow struct {
	ID         int64
	Properties sql.NullString
	Geometry   sql.NullString
	SRID       int
	CreatedAt  time.Time
}

// ListRecent returns the newest rows first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*core.Record, error) {
	limit, err := storage.ClampLimit(limit)
	if err != nil {
		return nil, err
	}

	var rows []recordRow
	if err := r.db.WithContext(ctx).Raw(listRecentSQL, limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list: %w", core.ErrStoreUnavailable, err)
	}

	records := make([]*core.Record, 0, len(rows))
	for _, row := range rows {
		rec := row.toRecord()
		if !core.IsRecordSRIDValid(rec) {
			r.logger.Warn("record stored with unexpected SRID", "id", rec.ID, "srid", rec.SRID)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (row recordRow) toRecord() *core.Record {
	props := json.RawMessage("null")
	if row.Properties.Valid {
		props = json.RawMessage(row.Properties.String)
	}
	var geom json.RawMessage
	if row.Geometry.Valid {
		geom = json.RawMessage(row.Geometry.String)
	}
	return &core.Record{
		ID:         core.ID(row.ID),
		Properties: props,
		Geometry:   geom,
		SRID:       row.SRID,
		CreatedAt:  row.CreatedAt,
	}
}
