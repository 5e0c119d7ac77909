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


package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/poiesic/geoingest/core"
	"github.com/poiesic/geoingest/geojson"
	"github.com/poiesic/geoingest/storage"
)

// Repository implements storage.FeatureRepository for BadgerDB.
// Geometries are stored as EWKB stamped with SRID 4326.
type Repository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.FeatureRepository = (*Repository)(nil)

// NewRepository creates a new Repository.
func NewRepository(backend *Backend) (*Repository, error) {
	idSeq, err := backend.Sequence(featureRecordIDSeq)
	if err != nil {
		return nil, err
	}

	return &Repository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *Repository) Close() error {
	return r.idSeq.Release()
}

// Bootstrap records the schema version. Calling it again is a no-op.
func (r *Repository) Bootstrap(ctx context.Context) error {
	if r.backend.IsClosed() {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, storage.ErrClosed)
	}

	err := r.backend.Update(func(tx *badger.Txn) error {
		_, err := tx.Get([]byte(schemaVersionKey))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return tx.Set([]byte(schemaVersionKey), []byte(schemaVersion))
	})

	// A concurrent bootstrap wrote the same version first.
	if errors.Is(err, badger.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: bootstrap: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

// InsertFeature converts the geometry and stores the feature in its own transaction.
//
// Geometries are kept in two dimensions: a third (Z) or fourth (M) position
// value is accepted but dropped, unlike the PostGIS backend which stores it.
func (r *Repository) InsertFeature(ctx context.Context, properties, geometry json.RawMessage) (core.ID, error) {
	geom, err := geojson.ConvertGeometry(geometry)
	if err != nil {
		return 0, err
	}
	wkb, err := ewkb.Marshal(geom, core.SRID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrGeometryConversion, err)
	}

	if r.backend.IsClosed() {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, storage.ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}

	id, err := r.nextID()
	if err != nil {
		return 0, fmt.Errorf("%w: allocating id: %w", core.ErrStoreUnavailable, err)
	}

	record := &storage.StoredFeature{
		ID:         id,
		Properties: geojson.NormalizeProperties(properties),
		Geometry:   wkb,
		CreatedAt:  time.Now().UTC(),
	}

	err = r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeFeatureKey(id), storage.MarshalStoredFeature(record))
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}

	return id, nil
}

// CountRecords counts stored features.
func (r *Repository) CountRecords(ctx context.Context) (int64, error) {
	if r.backend.IsClosed() {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, storage.ErrClosed)
	}

	var count int64
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(featureRecordPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return count, nil
}

// ListRecent returns the most recently inserted features, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*core.Record, error) {
	limit, err := storage.ClampLimit(limit)
	if err != nil {
		return nil, err
	}
	if r.backend.IsClosed() {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, storage.ErrClosed)
	}

	records := make([]*core.Record, 0, limit)
	err = r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(featureRecordPrefix)
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(lastFeatureKey()); iter.Valid() && len(records) < limit; iter.Next() {
			var stored *storage.StoredFeature
			err := iter.Item().Value(func(val []byte) error {
				var err error
				stored, err = storage.UnmarshalStoredFeature(val)
				return err
			})
			if err != nil {
				return err
			}

			record, err := toRecord(stored)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// nextID draws the next ID from the sequence, skipping zero.
func (r *Repository) nextID() (core.ID, error) {
	nextID, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

func toRecord(stored *storage.StoredFeature) (*core.Record, error) {
	geom, srid, err := ewkb.Unmarshal(stored.Geometry)
	if err != nil {
		return nil, fmt.Errorf("%w: record %d geometry: %w", storage.ErrSerializationFailed, stored.ID, err)
	}
	geometry, err := geojson.MarshalGeometry(geom)
	if err != nil {
		return nil, fmt.Errorf("%w: record %d geometry: %w", storage.ErrSerializationFailed, stored.ID, err)
	}

	return &core.Record{
		ID:         stored.ID,
		Properties: json.RawMessage(stored.Properties),
		Geometry:   geometry,
		SRID:       srid,
		CreatedAt:  stored.CreatedAt,
	}, nil
}
