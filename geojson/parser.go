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


package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/poiesic/geoingest/core"
)

var nullLiteral = []byte("null")

// feature mirrors the subset of a GeoJSON feature the pipeline stores.
type feature struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

// Parse decodes a raw document into a FeatureCollection.
//
// Returns core.ErrMalformedDocument if raw is not a JSON object and
// core.ErrSchema if the object has no features array. Elements of the
// features array that are not objects are kept as features without a
// geometry so that they fail individually at insert time.
func Parse(raw []byte) (*core.FeatureCollection, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: document is a JSON %s, not an object", core.ErrMalformedDocument, typeErr.Value)
		}
		return nil, fmt.Errorf("%w: %w", core.ErrMalformedDocument, err)
	}
	if top == nil {
		return nil, fmt.Errorf("%w: document is null", core.ErrMalformedDocument)
	}

	rawFeatures, ok := top["features"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawFeatures), nullLiteral) {
		return nil, core.ErrSchema
	}

	var items []json.RawMessage
	if err := json.Unmarshal(rawFeatures, &items); err != nil {
		return nil, fmt.Errorf("%w: features is not an array", core.ErrSchema)
	}

	collection := &core.FeatureCollection{
		Features: make([]core.Feature, len(items)),
	}
	for i, item := range items {
		var f feature
		if err := json.Unmarshal(item, &f); err != nil {
			// Left empty; conversion reports it against this feature only.
			continue
		}
		collection.Features[i] = core.Feature{
			Geometry:   f.Geometry,
			Properties: f.Properties,
		}
	}

	return collection, nil
}

// NormalizeProperties returns the JSON stored for a feature's properties.
// Absent properties are stored as JSON null.
func NormalizeProperties(props json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(props)
	if len(trimmed) == 0 {
		return json.RawMessage(nullLiteral)
	}
	return json.RawMessage(trimmed)
}
