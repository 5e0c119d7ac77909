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


package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/poiesic/geoingest/core"
)

// Ingester ingests the document at a storage location.
type Ingester interface {
	Ingest(ctx context.Context, loc core.Location) (*core.IngestResult, error)
}

// DocumentIngester ingests a document that is already in memory.
type DocumentIngester interface {
	IngestDocument(ctx context.Context, source string, raw []byte) (*core.IngestResult, error)
}

const snsNotification = "Notification"

type eventRecord struct {
	EventSource string `json:"eventSource"`
	EventName   string `json:"eventName"`
	S3          struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// DecodeEnvelope extracts the document locations referenced by a
// notification body.
//
// The body is an S3 event ({"Records":[{"s3":{"bucket":{"name":...},
// "object":{"key":...}}}]}), optionally wrapped in an SNS notification.
// Object keys are URL-decoded. Records are decoded one by one: a record that
// does not decode or lacks a bucket or key is skipped without affecting the
// others. Bodies of any other shape, such as the s3:TestEvent S3 sends when
// notifications are configured, yield no locations. Only a body that is not
// a JSON object is an error, wrapping ErrInvalidEnvelope.
func DecodeEnvelope(body []byte) ([]core.Location, error) {
	locations, _, err := decodeEnvelope(body)
	return locations, err
}

// decodeEnvelope is DecodeEnvelope that also reports why records were
// skipped.
func decodeEnvelope(body []byte) ([]core.Location, []error, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	if inner, ok := snsMessage(fields); ok {
		return decodeEnvelope([]byte(inner))
	}

	var skipped []error
	var records []json.RawMessage
	if raw, ok := fields["Records"]; ok {
		if err := json.Unmarshal(raw, &records); err != nil {
			skipped = append(skipped, fmt.Errorf("records: %w", err))
		}
	}

	locations := make([]core.Location, 0, len(records))
	for i, raw := range records {
		var record eventRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			skipped = append(skipped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		loc := core.Location{
			Bucket: record.S3.Bucket.Name,
			Key:    decodeKey(record.S3.Object.Key),
		}
		if loc.Bucket == "" || loc.Key == "" {
			continue
		}
		locations = append(locations, loc)
	}
	return locations, skipped, nil
}

// snsMessage returns the payload of an SNS notification wrapper.
func snsMessage(fields map[string]json.RawMessage) (string, bool) {
	var typ, message string
	if err := json.Unmarshal(fields["Type"], &typ); err != nil || typ != snsNotification {
		return "", false
	}
	if err := json.Unmarshal(fields["Message"], &message); err != nil {
		return "", false
	}
	return message, true
}

// decodeKey reverses the form encoding S3 applies to keys in event
// notifications. Keys that do not decode are used as given.
func decodeKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}
