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

// MySQLKeyMetadataRepository persists key metadata in the key_metadata table.
// The DSN must set parseTime=true.
type MySQLKeyMetadataRepository struct {
	db *sql.DB
}

// NewMySQLKeyMetadataRepository creates a new MySQL key metadata repository.
func NewMySQLKeyMetadataRepository(db *sql.DB) *MySQLKeyMetadataRepository {
	return &MySQLKeyMetadataRepository{db: db}
}

// Save inserts the metadata or updates the row with the same key_id.
func (m *MySQLKeyMetadataRepository) Save(ctx context.Context, metadata *cryptoDomain.KeyMetadata) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO key_metadata (key_id, version, algorithm, status, encryptions, decryptions,
			  created_at, rotated_at, expires_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			  	version = VALUES(version),
			  	algorithm = VALUES(algorithm),
			  	status = VALUES(status),
			  	encryptions = VALUES(encryptions),
			  	decryptions = VALUES(decryptions),
			  	created_at = VALUES(created_at),
			  	rotated_at = VALUES(rotated_at),
			  	expires_at = VALUES(expires_at)`

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
func (m *MySQLKeyMetadataRepository) Get(ctx context.Context, keyID string) (*cryptoDomain.KeyMetadata, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT key_id, version, algorithm, status, encryptions, decryptions, created_at, rotated_at, expires_at
			  FROM key_metadata WHERE key_id = ?`

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
func (m *MySQLKeyMetadataRepository) List(ctx context.Context) ([]*cryptoDomain.KeyMetadata, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT key_id, version, algorithm, status, encryptions, decryptions, created_at, rotated_at, expires_at
			  FROM key_metadata ORDER BY version ASC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list key metadata")
	}
	return scanKeyMetadataRows(rows)
}
