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


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/poiesic/geoingest"
	"github.com/poiesic/geoingest/config"
	"github.com/poiesic/geoingest/core"
	"github.com/poiesic/geoingest/delivery"
	"github.com/poiesic/geoingest/fetch"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("ignoring .env: %v", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	defaults := config.DefaultConfig()

	return &cli.App{
		Name:  "geoingest",
		Usage: "Load GeoJSON feature collections from S3 into PostGIS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "Feature store (postgis, badger)",
				Value:   defaults.Backend,
				EnvVars: []string{config.EnvStoreBackend},
			},
			&cli.StringFlag{
				Name:    "db-host",
				Usage:   "PostGIS host",
				Value:   defaults.DBHost,
				EnvVars: []string{config.EnvDBHost},
			},
			&cli.IntFlag{
				Name:    "db-port",
				Usage:   "PostGIS port",
				Value:   defaults.DBPort,
				EnvVars: []string{config.EnvDBPort},
			},
			&cli.StringFlag{
				Name:    "db-name",
				Usage:   "PostGIS database",
				Value:   defaults.DBName,
				EnvVars: []string{config.EnvDBName},
			},
			&cli.StringFlag{
				Name:    "db-user",
				Usage:   "PostGIS user",
				Value:   defaults.DBUser,
				EnvVars: []string{config.EnvDBUser},
			},
			&cli.StringFlag{
				Name:    "db-pass",
				Usage:   "PostGIS password",
				EnvVars: []string{config.EnvDBPass},
			},
			&cli.StringFlag{
				Name:    "db-sslmode",
				Usage:   "PostGIS sslmode",
				Value:   defaults.DBSSLMode,
				EnvVars: []string{config.EnvDBSSLMode},
			},
			&cli.IntFlag{
				Name:  "connect-attempts",
				Usage: "Attempts to reach the store at startup",
				Value: defaults.ConnectAttempts,
			},
			&cli.StringFlag{
				Name:    "badger-path",
				Usage:   "BadgerDB directory for the badger backend (empty keeps it in memory)",
				EnvVars: []string{config.EnvBadgerPath},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region",
				Value:   defaults.AWSRegion,
				EnvVars: []string{config.EnvAWSRegion},
			},
			&cli.StringFlag{
				Name:    "aws-endpoint",
				Usage:   "Endpoint override for S3 and SQS (LocalStack, MinIO)",
				EnvVars: []string{config.EnvAWSEndpoint},
			},
			&cli.StringFlag{
				Name:    "aws-profile",
				Usage:   "Shared credentials profile",
				EnvVars: []string{config.EnvAWSProfile},
			},
			&cli.Int64Flag{
				Name:    "max-object-size",
				Usage:   "Largest document accepted, in bytes",
				Value:   defaults.MaxObjectSize,
				EnvVars: []string{config.EnvMaxObjectSize},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Poll the queue and serve HTTP until interrupted",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "http-addr",
						Usage:   "HTTP listen address",
						Value:   defaults.HTTPAddr,
						EnvVars: []string{config.EnvHTTPAddr},
					},
					&cli.StringFlag{
						Name:    "queue-url",
						Usage:   "SQS queue URL or name (empty disables polling)",
						EnvVars: []string{config.EnvQueueURL},
					},
					&cli.IntFlag{
						Name:  "status-records",
						Usage: "Recent records shown on the status page",
						Value: 10,
					},
				},
			},
			{
				Name:   "poll",
				Usage:  "Poll the queue until interrupted",
				Action: pollCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "queue-url",
						Usage:    "SQS queue URL or name",
						EnvVars:  []string{config.EnvQueueURL},
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "once",
						Usage: "Receive and process a single batch, then exit",
					},
					&cli.DurationFlag{
						Name:  "wait-time",
						Usage: "Long-poll duration (1s to 20s)",
						Value: delivery.DefaultWaitTime,
					},
				},
			},
			{
				Name:   "invoke",
				Usage:  "Handle one S3 event the way a function runtime would",
				Action: invokeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "event",
						Usage: "File holding the event JSON, - for stdin",
						Value: "-",
					},
					&cli.StringFlag{
						Name:  "root",
						Usage: "Read documents from this directory instead of S3 (bucket/key below it)",
					},
				},
			},
			{
				Name:   "ingest-file",
				Usage:  "Ingest one document from a local directory laid out as bucket/key",
				Action: ingestFileCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "root",
						Usage:    "Directory holding one subdirectory per bucket",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "bucket",
						Aliases:  []string{"b"},
						Usage:    "Bucket name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Usage:    "Object key",
						Required: true,
					},
				},
			},
			{
				Name:   "init-db",
				Usage:  "Create the schema and exit",
				Action: initDBCommand,
			},
			{
				Name:   "status",
				Usage:  "Print the record count and the most recent records",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of recent records to print",
						Value: 10,
					},
				},
			},
		},
	}
}

func configFromContext(c *cli.Context) *config.Config {
	return config.NewConfig(
		config.WithBackend(c.String("backend")),
		config.WithDatabase(c.String("db-host"), c.Int("db-port"), c.String("db-name")),
		config.WithCredentials(c.String("db-user"), c.String("db-pass")),
		config.WithSSLMode(c.String("db-sslmode")),
		config.WithConnectAttempts(c.Int("connect-attempts")),
		config.WithBadgerPath(c.String("badger-path")),
		config.WithAWS(c.String("aws-region"), c.String("aws-endpoint"), c.String("aws-profile")),
		config.WithQueueURL(c.String("queue-url")),
		config.WithHTTPAddr(c.String("http-addr")),
		config.WithMaxObjectSize(c.Int64("max-object-size")),
	)
}

func newAWSSession(cfg *config.Config) (*session.Session, error) {
	return fetch.NewAWSSession(fetch.AWSOptions{
		Region:     cfg.AWSRegion,
		Profile:    cfg.AWSProfile,
		Endpoint:   cfg.AWSEndpoint,
		MaxRetries: 3,
	})
}

func newS3Fetcher(sess *session.Session, cfg *config.Config) (*fetch.S3Fetcher, error) {
	return fetch.NewS3Fetcher(s3.New(sess), fetch.WithMaxObjectSize(cfg.MaxObjectSize))
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := configFromContext(c)
	db, err := geoingest.NewDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	sess, err := newAWSSession(cfg)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}
	fetcher, err := newS3Fetcher(sess, cfg)
	if err != nil {
		return err
	}
	pipeline, err := db.NewIngestionPipeline(fetcher)
	if err != nil {
		return err
	}

	handler, err := delivery.NewHandler(pipeline, db.Repository(),
		delivery.WithMaxBodySize(cfg.MaxObjectSize),
		delivery.WithStatusRecords(c.Int("status-records")))
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var wg sync.WaitGroup
	if cfg.QueueURL != "" {
		poller, err := newPoller(ctx, sess, cfg.QueueURL, pipeline, delivery.DefaultWaitTime)
		if err != nil {
			srv.Close()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
	} else {
		slog.Info("no queue configured, polling disabled")
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err = <-errCh:
		slog.Error("http server failed", "err", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Error("error shutting down http server", "err", shutdownErr)
	}
	wg.Wait()

	return err
}

func newPoller(ctx context.Context, sess *session.Session, queue string, ingester delivery.Ingester, wait time.Duration) (*delivery.Poller, error) {
	client := sqs.New(sess)
	queueURL, err := delivery.ResolveQueueURL(ctx, client, queue)
	if err != nil {
		return nil, err
	}
	return delivery.NewPoller(client, queueURL, ingester, delivery.WithWaitTime(wait))
}

func pollCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := configFromContext(c)
	db, err := geoingest.NewDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	sess, err := newAWSSession(cfg)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}
	fetcher, err := newS3Fetcher(sess, cfg)
	if err != nil {
		return err
	}
	pipeline, err := db.NewIngestionPipeline(fetcher)
	if err != nil {
		return err
	}

	poller, err := newPoller(ctx, sess, cfg.QueueURL, pipeline, c.Duration("wait-time"))
	if err != nil {
		return err
	}

	if c.Bool("once") {
		return poller.PollOnce(ctx)
	}
	return poller.Run(ctx)
}

func invokeCommand(c *cli.Context) error {
	ctx := c.Context

	event, err := readEvent(c.String("event"), c.App.Reader)
	if err != nil {
		return err
	}

	cfg := configFromContext(c)
	db, err := geoingest.NewDatabase(ctx, cfg, geoingest.WithoutBootstrap())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	var fetcher fetch.Fetcher
	if root := c.String("root"); root != "" {
		fetcher, err = fetch.NewFileFetcher(root)
	} else {
		var sess *session.Session
		sess, err = newAWSSession(cfg)
		if err == nil {
			fetcher, err = newS3Fetcher(sess, cfg)
		}
	}
	if err != nil {
		return err
	}

	pipeline, err := db.NewIngestionPipeline(fetcher)
	if err != nil {
		return err
	}
	invoker, err := delivery.NewInvoker(pipeline, delivery.WithBootstrap(db.Repository()))
	if err != nil {
		return err
	}

	resp := invoker.Handle(ctx, event)
	if err := json.NewEncoder(c.App.Writer).Encode(resp); err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return cli.Exit(fmt.Sprintf("invocation failed with status %d", resp.StatusCode), 1)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return cli.Exit(fmt.Sprintf("invocation rejected with status %d", resp.StatusCode), 2)
	}
	return nil
}

func readEvent(name string, stdin io.Reader) ([]byte, error) {
	if name == "" || name == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	return data, nil
}

func ingestFileCommand(c *cli.Context) error {
	ctx := c.Context

	fetcher, err := fetch.NewFileFetcher(c.String("root"))
	if err != nil {
		return err
	}

	db, err := geoingest.NewDatabase(ctx, configFromContext(c))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline(fetcher)
	if err != nil {
		return err
	}

	result, err := pipeline.Ingest(ctx, core.Location{Bucket: c.String("bucket"), Key: c.String("key")})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	printResult(c.App.Writer, result)
	return nil
}

func printResult(w io.Writer, result *core.IngestResult) {
	fmt.Fprintf(w, "Source: %s\n", result.Source)
	fmt.Fprintf(w, "Digest: %s\n", result.Digest)
	fmt.Fprintf(w, "Inserted: %d\n", result.Inserted)
	fmt.Fprintf(w, "Failed: %d\n", result.Failed)
	fmt.Fprintf(w, "Elapsed: %s\n", result.Duration.Round(time.Millisecond))
}

func initDBCommand(c *cli.Context) error {
	cfg := configFromContext(c)
	db, err := geoingest.NewDatabase(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	fmt.Fprintf(c.App.Writer, "Schema ready (%s)\n", cfg.Backend)
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx := c.Context

	db, err := geoingest.NewDatabase(ctx, configFromContext(c), geoingest.WithoutBootstrap())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	repo := db.Repository()
	count, err := repo.CountRecords(ctx)
	if err != nil {
		return err
	}
	records, err := repo.ListRecent(ctx, c.Int("limit"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Records: %d\n", count)
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\tsrid=%d\t%s\t%s\n",
			r.ID, r.CreatedAt.UTC().Format(time.RFC3339), r.SRID, r.Properties, r.Geometry)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
