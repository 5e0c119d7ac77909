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


package fetch

import (
	"context"

	"github.com/poiesic/geoingest/core"
)

// Fetcher retrieves the body of a document.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	// Fetch returns the full document body as UTF-8 text.
	// Returns core.ErrNotFound if the location does not resolve and
	// core.ErrTransientIO for connectivity failures.
	Fetch(ctx context.Context, loc core.Location) ([]byte, error)
}
