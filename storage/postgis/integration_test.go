//go:build integration

package postgis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/geoingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgisImage = "postgis/postgis:16-3.4"

func startPostGIS(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgisImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "geo",
			"POSTGRES_PASSWORD": "geo",
			"POSTGRES_DB":       "geo",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(2 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("host=%s port=%s user=geo password=geo dbname=geo sslmode=disable", host, port.Port())
}

func openTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), startPostGIS(t), WithConnectRetry(10, 500*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.Bootstrap(context.Background()))
	return repo
}

func TestIntegration_BootstrapConcurrent(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Bootstrap(ctx)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var tables int64
	require.NoError(t, repo.db.Raw(
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'geospatial_data'`,
	).Scan(&tables).Error)
	assert.EqualValues(t, 1, tables)
}

func TestIntegration_InsertAndList(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	_, err := repo.InsertFeature(ctx, json.RawMessage(`{"name":"A"}`), json.RawMessage(`{"type":"Point","coordinates":[34.8,31.7]}`))
	require.NoError(t, err)
	_, err = repo.InsertFeature(ctx, nil, json.RawMessage(
		`{"type":"Point","coordinates":[1,2],"crs":{"type":"name","properties":{"name":"EPSG:3857"}}}`))
	require.NoError(t, err)

	count, err := repo.CountRecords(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	records, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "null", string(records[0].Properties))
	assert.JSONEq(t, `{"name":"A"}`, string(records[1].Properties))
	for _, r := range records {
		assert.Equal(t, core.SRID, r.SRID, "declared CRS must not survive")
		assert.False(t, r.CreatedAt.IsZero())
	}
}

func TestIntegration_ConnectFailure(t *testing.T) {
	_, err := Open(context.Background(),
		"host=127.0.0.1 port=1 user=x password=x dbname=x sslmode=disable connect_timeout=1",
		WithConnectRetry(2, 10*time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}
