package geojson

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/poiesic/geoingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertGeometry_Valid(t *testing.T) {
	tests := []struct {
		name     string
		geometry string
		wantType string
	}{
		{"point", `{"type":"Point","coordinates":[34.8,31.7]}`, "Point"},
		{"multipoint", `{"type":"MultiPoint","coordinates":[[1,2],[3,4]]}`, "MultiPoint"},
		{"linestring", `{"type":"LineString","coordinates":[[1,2],[3,4]]}`, "LineString"},
		{"multilinestring", `{"type":"MultiLineString","coordinates":[[[1,2],[3,4]]]}`, "MultiLineString"},
		{"polygon", `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`, "Polygon"},
		{"multipolygon", `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]]]}`, "MultiPolygon"},
		{"collection", `{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[1,2]}]}`, "GeometryCollection"},
		{"with crs member", `{"type":"Point","coordinates":[1,2],"crs":{"type":"name","properties":{"name":"EPSG:3857"}}}`, "Point"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geom, err := ConvertGeometry(json.RawMessage(tt.geometry))
			require.NoError(t, err)
			require.NotNil(t, geom)
			assert.Equal(t, tt.wantType, geom.GeoJSONType())
		})
	}
}

func TestConvertGeometry_PointValue(t *testing.T) {
	geom, err := ConvertGeometry(json.RawMessage(`{"type":"Point","coordinates":[34.8,31.7]}`))
	require.NoError(t, err)
	assert.Equal(t, orb.Point{34.8, 31.7}, geom)
}

func TestConvertGeometry_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		geometry string
	}{
		{"missing", ``},
		{"null", `null`},
		{"not an object", `"Point"`},
		{"unknown type", `{"type":"Blob","coordinates":[1,2]}`},
		{"missing type", `{"coordinates":[1,2]}`},
		{"missing coordinates", `{"type":"Point"}`},
		{"string coordinates", `{"type":"Point","coordinates":"oops"}`},
		{"short position", `{"type":"Point","coordinates":[34.8]}`},
		{"non-numeric position", `{"type":"Point","coordinates":["a","b"]}`},
		{"wrong nesting", `{"type":"LineString","coordinates":[1,2]}`},
		{"empty polygon", `{"type":"Polygon","coordinates":[]}`},
		{"empty collection", `{"type":"GeometryCollection","geometries":[]}`},
		{"bad collection member", `{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[1]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geom, err := ConvertGeometry(json.RawMessage(tt.geometry))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrGeometryConversion)
			assert.Nil(t, geom)
		})
	}
}

func TestMarshalGeometry(t *testing.T) {
	data, err := MarshalGeometry(orb.Point{1, 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[1,2]}`, string(data))
}
