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


package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/poiesic/geoingest/fetch"
)

// Store backends
const (
	BackendPostGIS = "postgis"
	BackendBadger  = "badger"
)

// Environment variables read by the command line.
const (
	EnvDBHost        = "DB_HOST"
	EnvDBPort        = "DB_PORT"
	EnvDBName        = "DB_NAME"
	EnvDBUser        = "DB_USER"
	EnvDBPass        = "DB_PASS"
	EnvDBSSLMode     = "DB_SSLMODE"
	EnvQueueURL      = "QUEUE_URL"
	EnvAWSRegion     = "AWS_REGION"
	EnvAWSEndpoint   = "AWS_ENDPOINT_URL"
	EnvAWSProfile    = "AWS_PROFILE"
	EnvStoreBackend  = "STORE_BACKEND"
	EnvBadgerPath    = "BADGER_PATH"
	EnvHTTPAddr      = "HTTP_ADDR"
	EnvMaxObjectSize = "MAX_OBJECT_SIZE"
)

// Config holds the settings of a geoingest process.
type Config struct {
	// Backend selects the feature store: "postgis" or "badger".
	Backend string

	// PostGIS connection.
	DBHost    string
	DBPort    int
	DBName    string
	DBUser    string
	DBPass    string
	DBSSLMode string

	// ConnectAttempts is how many times the store connection is tried at startup.
	ConnectAttempts int

	// BadgerPath is the directory of the embedded store. Empty keeps it in memory.
	BadgerPath string

	// QueueURL is the SQS queue URL, or a queue name to resolve.
	// Empty disables polling.
	QueueURL string

	AWSRegion   string
	AWSEndpoint string // LocalStack, MinIO
	AWSProfile  string

	// HTTPAddr is the listen address of the HTTP server.
	HTTPAddr string

	// MaxObjectSize bounds fetched objects and posted documents, in bytes.
	MaxObjectSize int64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend selects the feature store.
func WithBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithDatabase sets the PostGIS host, port and database name.
func WithDatabase(host string, port int, name string) ConfigOption {
	return func(c *Config) {
		c.DBHost = host
		c.DBPort = port
		c.DBName = name
	}
}

// WithCredentials sets the PostGIS user and password.
func WithCredentials(user, pass string) ConfigOption {
	return func(c *Config) {
		c.DBUser = user
		c.DBPass = pass
	}
}

// WithSSLMode sets the libpq sslmode.
func WithSSLMode(mode string) ConfigOption {
	return func(c *Config) {
		c.DBSSLMode = mode
	}
}

// WithConnectAttempts sets how many times the store connection is tried.
func WithConnectAttempts(n int) ConfigOption {
	return func(c *Config) {
		c.ConnectAttempts = n
	}
}

// WithBadgerPath sets the embedded store directory.
func WithBadgerPath(path string) ConfigOption {
	return func(c *Config) {
		c.BadgerPath = path
	}
}

// WithQueueURL sets the SQS queue.
func WithQueueURL(url string) ConfigOption {
	return func(c *Config) {
		c.QueueURL = url
	}
}

// WithAWS sets the region, endpoint override and shared credentials profile.
func WithAWS(region, endpoint, profile string) ConfigOption {
	return func(c *Config) {
		c.AWSRegion = region
		c.AWSEndpoint = endpoint
		c.AWSProfile = profile
	}
}

// WithHTTPAddr sets the HTTP listen address.
func WithHTTPAddr(addr string) ConfigOption {
	return func(c *Config) {
		c.HTTPAddr = addr
	}
}

// WithMaxObjectSize bounds document size.
func WithMaxObjectSize(size int64) ConfigOption {
	return func(c *Config) {
		c.MaxObjectSize = size
	}
}

// DefaultConfig returns a Config for a local PostGIS on the default port.
func DefaultConfig() *Config {
	return &Config{
		Backend:         BackendPostGIS,
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "postgres",
		DBUser:          "postgres",
		DBSSLMode:       "prefer",
		ConnectAttempts: 5,
		AWSRegion:       "us-east-1",
		HTTPAddr:        ":8080",
		MaxObjectSize:   fetch.DefaultMaxObjectSize,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize trims whitespace and lowercases the backend name.
func (c *Config) Normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.DBHost = strings.TrimSpace(c.DBHost)
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.QueueURL = strings.TrimSpace(c.QueueURL)
	c.AWSEndpoint = strings.TrimSuffix(strings.TrimSpace(c.AWSEndpoint), "/")
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Backend {
	case BackendPostGIS:
		if c.DBHost == "" {
			return errors.New("config: DBHost is required")
		}
		if c.DBPort < 1 || c.DBPort > 65535 {
			return fmt.Errorf("config: DBPort %d out of range", c.DBPort)
		}
		if c.DBName == "" {
			return errors.New("config: DBName is required")
		}
		if c.DBUser == "" {
			return errors.New("config: DBUser is required")
		}
	case BackendBadger:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	if c.ConnectAttempts < 1 {
		return errors.New("config: ConnectAttempts must be at least 1")
	}
	if c.MaxObjectSize <= 0 {
		return errors.New("config: MaxObjectSize must be positive")
	}
	return nil
}

// DSN returns the PostGIS connection string in key=value form.
func (c *Config) DSN() string {
	parts := []string{
		"host=" + quoteDSN(c.DBHost),
		fmt.Sprintf("port=%d", c.DBPort),
		"dbname=" + quoteDSN(c.DBName),
		"user=" + quoteDSN(c.DBUser),
	}
	if c.DBPass != "" {
		parts = append(parts, "password="+quoteDSN(c.DBPass))
	}
	if c.DBSSLMode != "" {
		parts = append(parts, "sslmode="+quoteDSN(c.DBSSLMode))
	}
	return strings.Join(parts, " ")
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// LoadDotEnv loads environment variables from .env files without
// overriding variables already set. Missing files are ignored.
// With no paths it reads ".env" in the working directory.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}
