//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/facedb/internal/config"
	"github.com/kozaktomas/facedb/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.PostgresConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(ctx, cfg, zap.NewNop())
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testVector(dim int, seed float32) database.Vector {
	v := make(database.Vector, dim)
	for i := range v {
		v[i] = seed + float32(i)/float32(dim)
	}
	return v
}

func TestIdentityRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewIdentityRepository(pool)

	t.Run("LoadBeforeSave", func(t *testing.T) {
		_, err := repo.Load(ctx, 128)
		if !errors.Is(err, database.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		store, err := database.NewStore(128, 0.5)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if _, err := store.Enroll("bob", []database.Vector{testVector(128, 1)}); err != nil {
			t.Fatalf("Failed to enroll bob: %v", err)
		}
		if _, err := store.Enroll("alice", []database.Vector{testVector(128, 2), testVector(128, 3)}); err != nil {
			t.Fatalf("Failed to enroll alice: %v", err)
		}

		if err := repo.Save(ctx, store.Snapshot()); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		got, err := repo.Load(ctx, 128)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if got.Tolerance() != 0.5 {
			t.Errorf("Expected tolerance 0.5, got %v", got.Tolerance())
		}
		names := got.Names()
		if len(names) != 2 || names[0] != "bob" || names[1] != "alice" {
			t.Errorf("Expected enrollment order [bob alice], got %v", names)
		}
		alice, ok := got.Get("alice")
		if !ok {
			t.Fatal("Expected alice to be present")
		}
		want, _ := store.Get("alice")
		if !alice.Equal(want) {
			t.Errorf("Alice embeddings did not survive the round trip")
		}
	})

	t.Run("SaveReplacesPrevious", func(t *testing.T) {
		snap, err := database.NewSnapshot(128, 0.6, []database.IdentityRecord{
			{Name: "carol", Embeddings: []database.Vector{testVector(128, 4)}},
		})
		if err != nil {
			t.Fatalf("Failed to build snapshot: %v", err)
		}
		if err := repo.Save(ctx, snap); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		got, err := repo.Load(ctx, 128)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if names := got.Names(); len(names) != 1 || names[0] != "carol" {
			t.Errorf("Expected only carol, got %v", names)
		}
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := repo.Load(ctx, 64)
		if !errors.Is(err, database.ErrDeserialization) {
			t.Fatalf("Expected ErrDeserialization, got %v", err)
		}
	})

	t.Run("IdentityWithoutEmbeddings", func(t *testing.T) {
		if _, err := pool.DB().ExecContext(ctx, `DELETE FROM identity_embeddings`); err != nil {
			t.Fatalf("Failed to delete embeddings: %v", err)
		}
		_, err := repo.Load(ctx, 128)
		if !errors.Is(err, database.ErrDeserialization) {
			t.Fatalf("Expected ErrDeserialization, got %v", err)
		}
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}

	expectedMigrations := []string{
		"001_identities.sql",
	}

	if len(applied) != len(expectedMigrations) {
		t.Errorf("Expected %d migrations, got %d", len(expectedMigrations), len(applied))
	}

	for i, expected := range expectedMigrations {
		if i < len(applied) && applied[i] != expected {
			t.Errorf("Migration %d: expected '%s', got '%s'", i, expected, applied[i])
		}
	}

	// Running again is a no-op.
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}
}
