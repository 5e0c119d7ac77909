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


// Package delivery connects the ingestion pipeline to the ways documents
// arrive.
//
//   - Poller long-polls an SQS queue for S3 event notifications and deletes
//     a message only after every document it references was ingested
//     without a document-level error.
//   - NewHandler serves POST /ingest for documents pushed directly, plus a
//     status page, a health check and Prometheus metrics.
//   - Invoker handles one S3 event delivered synchronously, the way a
//     function runtime would call it.
//
// Poller and Invoker decode notifications with DecodeEnvelope. A record
// that does not decode is skipped; the other records of the same
// notification are still delivered.
package delivery
