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


// Package postgis stores features in PostgreSQL with the PostGIS extension.
//
// Features live in a single table:
//
//	geospatial_data(id SERIAL PRIMARY KEY, properties JSONB,
//	                geom GEOMETRY(Geometry, 4326),
//	                created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)
//
// Geometries are converted server side with ST_GeomFromGeoJSON and always
// assigned SRID 4326 with ST_SetSRID, whatever CRS the document declared.
// Each insert is a single statement and therefore its own transaction.
package postgis
