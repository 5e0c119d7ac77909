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
	"html/template"
	"net/http"
	"time"

	"github.com/poiesic/geoingest/core"
)

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head><title>geoingest</title></head>
<body>
<h1>geoingest</h1>
{{if .Error}}<p>Store unavailable: {{.Error}}</p>{{else}}
<p>{{.Count}} features stored.</p>
{{if .Records}}
<table>
<tr><th>ID</th><th>Created</th><th>SRID</th><th>Properties</th><th>Geometry</th></tr>
{{range .Records}}<tr><td>{{.ID}}</td><td>{{.CreatedAt.Format "2006-01-02 15:04:05"}}</td><td>{{.SRID}}</td><td><code>{{printf "%s" .Properties}}</code></td><td><code>{{printf "%s" .Geometry}}</code></td></tr>
{{end}}</table>
{{end}}{{end}}
<p><small>{{.Now.Format "2006-01-02T15:04:05Z07:00"}}</small></p>
</body>
</html>
`))

type statusPage struct {
	Count   int64
	Records []*core.Record
	Error   string
	Now     time.Time
}

// GET /
func (s *server) getStatus(w http.ResponseWriter, r *http.Request) {
	page := statusPage{Now: time.Now().UTC()}
	status := http.StatusOK

	count, err := s.reader.CountRecords(r.Context())
	if err == nil {
		page.Count = count
		page.Records, err = s.reader.ListRecent(r.Context(), s.statusRecords)
	}
	if err != nil {
		s.logger.Error("error rendering status page", "err", err)
		page.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := statusTemplate.Execute(w, page); err != nil {
		s.logger.Error("error writing status page", "err", err)
	}
}
