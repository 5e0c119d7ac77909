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


// Package fetch retrieves raw documents from object storage.
//
// S3Fetcher reads objects through the AWS SDK and is what the queue poller
// and the direct invocation handler use in production. FileFetcher reads the
// same bucket/key layout from a local directory for development runs.
//
// Both report a missing object as core.ErrNotFound and connectivity problems
// as core.ErrTransientIO, so callers can decide whether a retry makes sense.
package fetch
