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


// Package ingestion turns one GeoJSON document into stored features.
//
// A Pipeline fetches a document, parses it into a feature collection and
// inserts the features one at a time, in document order. A feature that
// fails to store is logged and counted and does not stop the rest of the
// document. Errors that reject the whole document (missing object, fetch
// failure, malformed JSON, missing features) are returned so the caller can
// decide whether the delivery should be retried.
//
// The pipeline keeps no state between documents. Delivering the same
// document twice stores its features twice.
package ingestion
