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


// Package geojson decodes ingested GeoJSON documents.
//
// Parse turns a raw document into a core.FeatureCollection. It only checks
// the document structure: the body must be a JSON object carrying a features
// array. Geometries are not interpreted during parsing; they are converted
// later, one feature at a time, by ConvertGeometry, so a single bad geometry
// never rejects the whole document.
package geojson
