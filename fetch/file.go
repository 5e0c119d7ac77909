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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/geoingest/core"
)

// FileFetcher reads documents from a local directory laid out as
// <root>/<bucket>/<key>.
type FileFetcher struct {
	root string
}

var _ Fetcher = (*FileFetcher)(nil)

// NewFileFetcher creates a fetcher rooted at dir.
func NewFileFetcher(dir string) (*FileFetcher, error) {
	if dir == "" {
		return nil, ErrRootRequired
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	return &FileFetcher{root: abs}, nil
}

// Fetch reads the file for loc.
func (f *FileFetcher) Fetch(ctx context.Context, loc core.Location) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrTransientIO, err)
	}

	path, err := f.resolve(loc)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, loc)
		}
		return nil, fmt.Errorf("%w: reading %s: %w", core.ErrTransientIO, loc, err)
	}
	return checkText(loc, content)
}

// resolve maps loc onto a path under the root, refusing keys that escape it.
func (f *FileFetcher) resolve(loc core.Location) (string, error) {
	path := filepath.Join(f.root, loc.Bucket, filepath.FromSlash(loc.Key))
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", core.ErrNotFound, loc, f.root)
	}
	return path, nil
}
