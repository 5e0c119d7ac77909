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


package postgis

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/poiesic/geoingest/core"
)

// classifyError maps an insert failure onto the core error taxonomy.
//
// SQLSTATE class 22 (data exception) and XX (internal, which is how PostGIS
// raises lwgeom parse errors) mean the server rejected the geometry or the
// properties. Every other server error and anything that never reached the
// server counts as the store being unavailable.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch sqlStateClass(pgErr.Code) {
		case "22", "XX":
			return fmt.Errorf("%w: %s (SQLSTATE %s)", core.ErrGeometryConversion, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
}

func sqlStateClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}
