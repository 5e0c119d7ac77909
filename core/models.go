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

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// SRID is the spatial reference every stored geometry is assigned (WGS84).
const SRID = 4326

// ID is a store-assigned record identifier.
type ID uint64

// Digest is a 64-bit content fingerprint of a raw document.
type Digest uint64

// DigestOf computes a deterministic BLAKE2b-64 digest of a document body.
// Redelivered copies of the same document produce the same digest, which
// makes them easy to correlate in logs.
func DigestOf(data []byte) Digest {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return Digest(binary.LittleEndian.Uint64(sum))
}

// String renders the digest as 16 hex characters.
func (d Digest) String() string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(d))
	return hex.EncodeToString(buf[:])
}

// Location identifies one document in object storage.
type Location struct {
	Bucket string
	Key    string
}

// String returns the location as an s3:// URL.
func (l Location) String() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

// Feature is a single GeoJSON feature as it appears in an ingested document.
// Geometry and Properties are kept as raw JSON; the store decides whether the
// geometry can be converted.
type Feature struct {
	Geometry   json.RawMessage
	Properties json.RawMessage
}

// FeatureCollection is a decoded document.
type FeatureCollection struct {
	Features []Feature
}

// Record is a persisted feature.
type Record struct {
	ID         ID
	Properties json.RawMessage
	Geometry   json.RawMessage // GeoJSON rendering of the stored geometry
	SRID       int
	CreatedAt  time.Time
}

// IngestResult summarizes the outcome of ingesting one document.
type IngestResult struct {
	Source      string
	Digest      Digest
	Inserted    int
	Failed      int
	Unavailable int // failures caused by the store being unreachable, a subset of Failed
	Duration    time.Duration
}

// Total returns the number of features the document contained.
func (r *IngestResult) Total() int {
	return r.Inserted + r.Failed
}
