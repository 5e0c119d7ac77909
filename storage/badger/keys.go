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
	"encoding/binary"

	"github.com/poiesic/geoingest/core"
)

// Key prefixes for different data types
const (
	featureRecordPrefix = "georec:"
	featureRecordIDSeq  = "georecseq"
	schemaVersionKey    = "geoschema"
)

// schemaVersion is written by Bootstrap.
const schemaVersion = "1"

// makeFeatureKey generates a key for a feature record by ID.
// Format: prefix:id, with the ID in BigEndian order so that lexicographic
// order matches insertion order.
func makeFeatureKey(id core.ID) []byte {
	buf := make([]byte, len(featureRecordPrefix)+8)
	offset := copy(buf, featureRecordPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// lastFeatureKey generates the largest possible feature key, used to start
// reverse iteration.
func lastFeatureKey() []byte {
	return makeFeatureKey(core.ID(^uint64(0)))
}
