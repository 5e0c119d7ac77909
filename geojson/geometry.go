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
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
	"github.com/poiesic/geoingest/core"
)

// positionDepth is the array nesting of each geometry type's coordinates,
// where 0 means a single position.
var positionDepth = map[string]int{
	"Point":           0,
	"MultiPoint":      1,
	"LineString":      1,
	"MultiLineString": 2,
	"Polygon":         2,
	"MultiPolygon":    3,
}

const geometryCollection = "GeometryCollection"

type rawGeometry struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometries  []json.RawMessage `json:"geometries"`
}

// ConvertGeometry decodes a GeoJSON geometry object.
// Any failure is reported as core.ErrGeometryConversion.
func ConvertGeometry(raw json.RawMessage) (orb.Geometry, error) {
	if err := checkGeometry(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrGeometryConversion, err)
	}

	g, err := orbjson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrGeometryConversion, err)
	}
	geom := g.Geometry()
	if geom == nil {
		return nil, fmt.Errorf("%w: empty geometry", core.ErrGeometryConversion)
	}
	return geom, nil
}

// MarshalGeometry renders a geometry as a GeoJSON geometry object.
func MarshalGeometry(geom orb.Geometry) (json.RawMessage, error) {
	return json.Marshal(orbjson.NewGeometry(geom))
}

// checkGeometry validates the structure of a geometry before it is decoded:
// a known type and correctly nested, numeric positions.
func checkGeometry(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return fmt.Errorf("geometry is missing")
	}

	var g rawGeometry
	if err := json.Unmarshal(trimmed, &g); err != nil {
		return err
	}

	if g.Type == geometryCollection {
		if len(g.Geometries) == 0 {
			return fmt.Errorf("geometry collection is empty")
		}
		for i, member := range g.Geometries {
			if err := checkGeometry(member); err != nil {
				return fmt.Errorf("geometries[%d]: %w", i, err)
			}
		}
		return nil
	}

	depth, ok := positionDepth[g.Type]
	if !ok {
		return fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	if len(g.Coordinates) == 0 {
		return fmt.Errorf("%s has no coordinates", g.Type)
	}

	var coords any
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return err
	}
	return checkPositions(coords, depth)
}

func checkPositions(v any, depth int) error {
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("coordinates must be arrays")
	}

	if depth == 0 {
		if len(items) < 2 {
			return fmt.Errorf("position needs at least 2 values, got %d", len(items))
		}
		for _, item := range items {
			n, ok := item.(float64)
			if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
				return fmt.Errorf("position value %v is not a number", item)
			}
		}
		return nil
	}

	if len(items) == 0 {
		return fmt.Errorf("coordinates array is empty")
	}
	for _, item := range items {
		if err := checkPositions(item, depth-1); err != nil {
			return err
		}
	}
	return nil
}
