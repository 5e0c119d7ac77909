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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/geoingest/core"
)

// StoredFeature is the encoded form of a record in key-value backends.
// Geometry holds EWKB, which carries the SRID alongside the shape.
type StoredFeature struct {
	ID         core.ID
	Properties []byte
	Geometry   []byte
	CreatedAt  time.Time
}

// storedFeatureMUS serializes StoredFeature as
// varint id | bytes properties | bytes geometry | varint created-at micros.
var storedFeatureMUS = storedFeatureSer{}

type storedFeatureSer struct{}

func (storedFeatureSer) Marshal(v StoredFeature, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.ID), bs)
	n += ord.ByteSlice.Marshal(v.Properties, bs[n:])
	n += ord.ByteSlice.Marshal(v.Geometry, bs[n:])
	n += varint.Int64.Marshal(v.CreatedAt.UnixMicro(), bs[n:])
	return
}

func (storedFeatureSer) Unmarshal(bs []byte) (v StoredFeature, n int, err error) {
	id, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.ID = core.ID(id)

	var n1 int
	v.Properties, n1, err = ord.ByteSlice.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Geometry, n1, err = ord.ByteSlice.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt = time.UnixMicro(micros).UTC()
	return
}

func (storedFeatureSer) Size(v StoredFeature) (size int) {
	size = varint.Uint64.Size(uint64(v.ID))
	size += ord.ByteSlice.Size(v.Properties)
	size += ord.ByteSlice.Size(v.Geometry)
	return size + varint.Int64.Size(v.CreatedAt.UnixMicro())
}

// MarshalStoredFeature serializes a StoredFeature to bytes.
func MarshalStoredFeature(feature *StoredFeature) []byte {
	buf := make([]byte, storedFeatureMUS.Size(*feature))
	storedFeatureMUS.Marshal(*feature, buf)
	return buf
}

// UnmarshalStoredFeature deserializes a StoredFeature from bytes.
func UnmarshalStoredFeature(data []byte) (*StoredFeature, error) {
	feature, _, err := storedFeatureMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &feature, nil
}
