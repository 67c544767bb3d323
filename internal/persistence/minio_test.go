//go:build integration

package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/facedb/internal/database"
)

func setupMinioContainer(t *testing.T) (MinioConfig, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return MinioConfig{}, func() {}
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	cfg := MinioConfig{
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "facedb-test",
		Object:    "roster/faces.db",
	}
	return cfg, func() { _ = container.Terminate(ctx) }
}

func TestMinioStore_Integration(t *testing.T) {
	cfg, cleanup := setupMinioContainer(t)
	defer cleanup()

	ctx := context.Background()
	blob, err := DialMinio(ctx, cfg)
	require.NoError(t, err)
	store := NewBlobStore(blob, CompressionZstd)

	_, err = store.Load(ctx, 4)
	require.ErrorIs(t, err, database.ErrNotFound)

	snap := sampleSnapshot(t)
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx, 4)
	require.NoError(t, err)
	assertSnapshotsEqual(t, snap, got)
}
