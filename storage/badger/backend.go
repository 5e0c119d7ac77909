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


package badger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Number of IDs leased from a sequence per disk write.
const sequenceLease = 100

// Backend owns a BadgerDB handle. An empty directory keeps the data in
// memory, which is what tests and one-off local runs use.
type Backend struct {
	db     *badger.DB
	dir    string
	logger *slog.Logger
}

type backendOptions struct {
	logger     *slog.Logger
	syncWrites bool
}

// BackendOption configures OpenBackend.
type BackendOption func(*backendOptions)

// WithBackendLogger routes Badger's own log output to logger.
// Default is slog.Default().
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(o *backendOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSyncWrites makes every commit wait for fsync. Ignored in memory.
func WithSyncWrites(sync bool) BackendOption {
	return func(o *backendOptions) {
		o.syncWrites = sync
	}
}

// slogAdapter satisfies badger.Logger. Badger is chatty at info level, so
// its info lines are demoted to debug.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

// OpenBackend opens the store in dir, creating the directory if needed.
func OpenBackend(dir string, opts ...BackendOption) (*Backend, error) {
	o := &backendOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	var bopts badger.Options
	if dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(dir).WithSyncWrites(o.syncWrites)
	}
	bopts.Logger = &slogAdapter{logger: o.logger}
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store %q: %w", dir, err)
	}

	return &Backend{db: db, dir: dir, logger: o.logger}, nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("badger store %q is not a directory", dir)
	}
	return nil
}

// InMemory reports whether the store has no directory behind it.
func (b *Backend) InMemory() bool {
	return b.dir == ""
}

// Close flushes and closes the store.
func (b *Backend) Close() error {
	b.logger.Debug("closing badger store", "dir", b.dir)
	return b.db.Close()
}

// IsClosed reports whether Close has been called.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// View runs fn in a read-only transaction.
func (b *Backend) View(fn func(txn *badger.Txn) error) error {
	return b.db.View(fn)
}

// Update runs fn in a read-write transaction and commits it if fn returns
// nil. A conflicting concurrent commit surfaces as badger.ErrConflict.
func (b *Backend) Update(fn func(txn *badger.Txn) error) error {
	return b.db.Update(fn)
}

// Sequence leases monotonically increasing integers stored under name.
// The caller must Release it.
func (b *Backend) Sequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), sequenceLease)
}
