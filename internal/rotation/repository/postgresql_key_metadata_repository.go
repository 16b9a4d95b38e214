package repository

import (
	"context"
	"database/sql"
	"errors"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
)

// PostgreSQLKeyMetadataRepository persists key metadata in the key_metadata table.
//
// Database schema requirements:
//   - key_id: VARCHAR PRIMARY KEY
//   - version: INTEGER
//   - algorithm, status: VARCHAR
//   - encryptions, decryptions: BIGINT
//   - created_at: TIMESTAMP WITH TIME ZONE
//   - rotated_at, expires_at: nullable TIMESTAMP WITH TIME ZONE
type PostgreSQLKeyMetadataRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeyMetadataRepository creates a new PostgreSQL key metadata repository.
func NewPostgreSQLKeyMetadataRepository(db *sql.DB) *PostgreSQLKeyMetadataRepository {
	return &PostgreSQLKeyMetadataRepository{db: db}
}

// Save inserts the metadata or updates the row with the same key_id.
func (p *PostgreSQLKeyMetadataRepository) Save(ctx context.Context, metadata *cryptoDomain.KeyMetadata) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO key_metadata (key_id, version, algorithm, status, encryptions, decryptions,
			  created_at, rotated_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (key_id) DO UPDATE SET
			  	version = EXCLUDED.version,
			  	algorithm = EXCLUDED.algorithm,
			  	status = EXCLUDED.status,
			  	encryptions = EXCLUDED.encryptions,
			  	decryptions = EXCLUDED.decryptions,
			  	created_at = EXCLUDED.created_at,
			  	rotated_at = EXCLUDED.rotated_at,
			  	expires_at = EXCLUDED.expires_at`

	_, err := querier.ExecContext(
		ctx,
		query,
		metadata.KeyID,
		metadata.Version,
		metadata.Algorithm,
		metadata.Status,
		metadata.Usage.Encryptions,
		metadata.Usage.Decryptions,
		metadata.CreatedAt,
		metadata.RotatedAt,
		metadata.ExpiresAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to save key metadata")
	}
	return nil
}

// Get returns the metadata of keyID.
func (p *PostgreSQLKeyMetadataRepository) Get(ctx context.Context, keyID string) (*cryptoDomain.KeyMetadata, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT key_id, version, algorithm, status, encryptions, decryptions, created_at, rotated_at, expires_at
			  FROM key_metadata WHERE key_id = $1`

	metadata, err := scanKeyMetadata(querier.QueryRowContext(ctx, query, keyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rotationDomain.ErrKeyMetadataNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get key metadata")
	}
	return metadata, nil
}

// List returns every stored key ordered by version.
func (p *PostgreSQLKeyMetadataRepository) List(ctx context.Context) ([]*cryptoDomain.KeyMetadata, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT key_id, version, algorithm, status, encryptions, decryptions, created_at, rotated_at, expires_at
			  FROM key_metadata ORDER BY version ASC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list key metadata")
	}
	return scanKeyMetadataRows(rows)
}
