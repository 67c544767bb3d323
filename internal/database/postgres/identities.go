package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/facedb/internal/database"
	"github.com/kozaktomas/facedb/internal/persistence"
	"github.com/pgvector/pgvector-go"
)

// schemaFormat is stored with every save so future layouts can be told apart.
const schemaFormat = 1

// IdentityRepository keeps an encoding database in PostgreSQL. Each save
// replaces the stored database as a whole inside one transaction.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a repository on top of an existing pool.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Save writes the snapshot, replacing whatever was stored before.
func (r *IdentityRepository) Save(ctx context.Context, snap *database.Snapshot) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", database.ErrIO, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM identities`); err != nil {
		return fmt.Errorf("%w: clearing identities: %w", database.ErrIO, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO database_settings (id, format_version, dim, tolerance, saved_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			format_version = EXCLUDED.format_version,
			dim = EXCLUDED.dim,
			tolerance = EXCLUDED.tolerance,
			saved_at = EXCLUDED.saved_at
	`, schemaFormat, snap.Dim(), snap.Tolerance())
	if err != nil {
		return fmt.Errorf("%w: saving settings: %w", database.ErrIO, err)
	}

	identityStmt, err := tx.PrepareContext(ctx, `INSERT INTO identities (name, position) VALUES ($1, $2)`)
	if err != nil {
		return fmt.Errorf("%w: %w", database.ErrIO, err)
	}
	defer identityStmt.Close()

	embeddingStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO identity_embeddings (name, ordinal, embedding) VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("%w: %w", database.ErrIO, err)
	}
	defer embeddingStmt.Close()

	var insertErr error
	snap.Range(func(i int, rec database.IdentityRecord) bool {
		if _, err := identityStmt.ExecContext(ctx, rec.Name, i); err != nil {
			insertErr = fmt.Errorf("%w: saving identity %q: %w", database.ErrIO, rec.Name, err)
			return false
		}
		for ordinal, emb := range rec.Embeddings {
			vec := pgvector.NewVector(emb)
			if _, err := embeddingStmt.ExecContext(ctx, rec.Name, ordinal, vec); err != nil {
				insertErr = fmt.Errorf("%w: saving embedding %d of %q: %w", database.ErrIO, ordinal, rec.Name, err)
				return false
			}
		}
		return true
	})
	if insertErr != nil {
		return insertErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing database: %w", database.ErrIO, err)
	}
	return nil
}

// Load restores the stored database. An empty settings table means nothing was
// saved yet and yields database.ErrNotFound.
func (r *IdentityRepository) Load(ctx context.Context, dim int) (*database.Snapshot, error) {
	var format, storedDim int
	var tolerance float64
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT format_version, dim, tolerance FROM database_settings WHERE id = 1`,
	).Scan(&format, &storedDim, &tolerance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no database saved in postgres", database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading settings: %w", database.ErrIO, err)
	}
	if format != schemaFormat {
		return nil, fmt.Errorf("%w: unsupported format version %d", database.ErrDeserialization, format)
	}
	if dim > 0 && storedDim != dim {
		return nil, fmt.Errorf("%w: stored dimension %d, expected %d", database.ErrDeserialization, storedDim, dim)
	}

	names, err := r.loadNames(ctx)
	if err != nil {
		return nil, err
	}
	embeddings, err := r.loadEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]database.IdentityRecord, 0, len(names))
	for _, name := range names {
		records = append(records, database.IdentityRecord{Name: name, Embeddings: embeddings[name]})
	}

	snap, err := database.NewSnapshot(storedDim, tolerance, records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrDeserialization, err)
	}
	return snap, nil
}

func (r *IdentityRepository) loadNames(ctx context.Context) ([]string, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT name FROM identities ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying identities: %w", database.ErrIO, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scanning identity: %w", database.ErrIO, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating identities: %w", database.ErrIO, err)
	}
	return names, nil
}

func (r *IdentityRepository) loadEmbeddings(ctx context.Context) (map[string][]database.Vector, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT name, embedding FROM identity_embeddings ORDER BY name, ordinal`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying embeddings: %w", database.ErrIO, err)
	}
	defer rows.Close()

	embeddings := make(map[string][]database.Vector)
	for rows.Next() {
		var name string
		var vec pgvector.Vector
		if err := rows.Scan(&name, &vec); err != nil {
			return nil, fmt.Errorf("%w: scanning embedding: %w", database.ErrIO, err)
		}
		embeddings[name] = append(embeddings[name], database.Vector(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating embeddings: %w", database.ErrIO, err)
	}
	return embeddings, nil
}

// Describe returns a label for logs.
func (r *IdentityRepository) Describe() string {
	return "postgres"
}

var _ persistence.Store = (*IdentityRepository)(nil)

// Close closes the underlying pool.
func (r *IdentityRepository) Close() error {
	return r.pool.Close()
}
