package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidateLocation(t *testing.T) {
	tests := []struct {
		name    string
		loc     Location
		wantErr error
	}{
		{
			name:    "valid location",
			loc:     Location{Bucket: "uploads", Key: "a.geojson"},
			wantErr: nil,
		},
		{
			name:    "empty bucket is allowed",
			loc:     Location{Key: "a.geojson"},
			wantErr: nil,
		},
		{
			name:    "empty key",
			loc:     Location{Bucket: "uploads"},
			wantErr: ErrInvalidLocation,
		},
		{
			name:    "directory marker",
			loc:     Location{Bucket: "uploads", Key: "maps/"},
			wantErr: ErrInvalidLocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLocation(tt.loc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateLocation() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateLocation() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsRecordSRIDValid(t *testing.T) {
	if IsRecordSRIDValid(nil) {
		t.Error("nil record should not be valid")
	}
	if IsRecordSRIDValid(&Record{SRID: 0}) {
		t.Error("SRID 0 should not be valid")
	}
	if !IsRecordSRIDValid(&Record{SRID: 4326}) {
		t.Error("SRID 4326 should be valid")
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		document bool
		client   bool
	}{
		{"not found", ErrNotFound, true, false},
		{"transient", fmt.Errorf("%w: timeout", ErrTransientIO), true, false},
		{"malformed", fmt.Errorf("wrapped: %w", ErrMalformedDocument), true, true},
		{"schema", ErrSchema, true, true},
		{"geometry", ErrGeometryConversion, false, false},
		{"store", ErrStoreUnavailable, false, false},
		{"other", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDocumentError(tt.err); got != tt.document {
				t.Errorf("IsDocumentError() = %v, want %v", got, tt.document)
			}
			if got := IsClientError(tt.err); got != tt.client {
				t.Errorf("IsClientError() = %v, want %v", got, tt.client)
			}
		})
	}
}
