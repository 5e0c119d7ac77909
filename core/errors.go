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


package core

import "errors"

// Document-level errors
var (
	// ErrNotFound indicates the document location does not resolve.
	ErrNotFound = errors.New("document not found")

	// ErrTransientIO indicates a connectivity failure while fetching a document.
	// The fetch may succeed if retried.
	ErrTransientIO = errors.New("transient i/o failure")

	// ErrMalformedDocument indicates the document is not valid JSON.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrSchema indicates the document has no features sequence.
	ErrSchema = errors.New("document has no features")
)

// Store errors
var (
	// ErrGeometryConversion indicates a feature geometry could not be converted
	// into the store's geometry type.
	ErrGeometryConversion = errors.New("geometry conversion failed")

	// ErrStoreUnavailable indicates a connectivity or transaction failure in the store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidLocation indicates a document location is missing its key.
	ErrInvalidLocation = errors.New("invalid document location")
)

// IsDocumentError reports whether err rejects a whole document, as opposed
// to a single feature.
func IsDocumentError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTransientIO) ||
		errors.Is(err, ErrMalformedDocument) ||
		errors.Is(err, ErrSchema)
}

// IsClientError reports whether err was caused by the document content
// rather than by infrastructure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedDocument) || errors.Is(err, ErrSchema)
}
