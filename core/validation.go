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
	"fmt"
	"strings"
)

// ValidateLocation validates a Location before it is fetched.
//
// Validation rules:
//   - Key must not be empty
//   - Key must not be a directory marker (trailing slash)
//
// Bucket may be empty for fetchers that do not use buckets.
func ValidateLocation(loc Location) error {
	if loc.Key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidLocation)
	}
	if strings.HasSuffix(loc.Key, "/") {
		return fmt.Errorf("%w: %s is a directory marker", ErrInvalidLocation, loc)
	}
	return nil
}

// IsRecordSRIDValid reports whether a stored record carries the required SRID.
func IsRecordSRIDValid(record *Record) bool {
	return record != nil && record.SRID == SRID
}
