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


// Package storage provides the storage abstraction layer for geoingest.
//
// This package defines the repository interfaces that decouple the ingestion
// pipeline from the database holding ingested features. Two backends exist:
//
//   - postgis: PostgreSQL with the PostGIS extension, used in production
//   - badger: an embedded BadgerDB store for local runs and tests
//
// # Constructor Return Type Pattern
//
// Backend packages return their concrete repository type from public
// constructors and assert the interface at compile time:
//
//	var _ storage.FeatureRepository = (*Repository)(nil)
//
// Consumers (the ingestion pipeline, the status page) only ever hold the
// narrow interface they need: FeatureWriter or RecordReader.
//
// # Geometry
//
// Every backend must store geometries with SRID 4326, assigned at insert
// time regardless of what the source document declares. Geometries that
// cannot be converted fail with core.ErrGeometryConversion; connectivity and
// transaction failures are core.ErrStoreUnavailable.
//
// # Transactions
//
// Each InsertFeature call commits on its own. A document whose ingestion is
// interrupted keeps the features inserted before the interruption.
//
// # Thread Safety
//
// All repository implementations must be safe for concurrent use: the HTTP
// receiver and the queue poller share one repository.
package storage
