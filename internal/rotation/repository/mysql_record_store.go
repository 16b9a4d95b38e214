package repository

import (
	"context"
	"database/sql"
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
)

// MySQLRecordStore reads and rewrites encrypted columns in MySQL.
//
// Tables must have an "id" primary key. Searchable columns need a "<column>_search"
// VARCHAR column next to them.
type MySQLRecordStore struct {
	db *sql.DB
}

// NewMySQLRecordStore creates a MySQL record store.
func NewMySQLRecordStore(db *sql.DB) *MySQLRecordStore {
	return &MySQLRecordStore{db: db}
}

// Count returns the number of non-NULL values not written under activeMarker.
func (m *MySQLRecordStore) Count(ctx context.Context, entityType, field, activeMarker string) (int64, error) {
	ref, err := resolveColumn(entityType, field, quoteMySQL)
	if err != nil {
		return 0, err
	}
	querier := database.GetTx(ctx, m.db)

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s NOT LIKE ?",
		ref.table, ref.column, ref.column,
	)

	var count int64
	if err := querier.QueryRowContext(ctx, query, likePrefix(activeMarker)).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count pending values")
	}
	return count, nil
}

// CountWithMarker returns the number of values written under marker.
func (m *MySQLRecordStore) CountWithMarker(ctx context.Context, entityType, field, marker string) (int64, error) {
	ref, err := resolveColumn(entityType, field, quoteMySQL)
	if err != nil {
		return 0, err
	}
	querier := database.GetTx(ctx, m.db)

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s LIKE ?", ref.table, ref.column)

	var count int64
	if err := querier.QueryRowContext(ctx, query, likePrefix(marker)).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count values by marker")
	}
	return count, nil
}

// FetchBatch returns up to limit pending values ordered by id.
func (m *MySQLRecordStore) FetchBatch(
	ctx context.Context,
	entityType, field, activeMarker string,
	limit int,
) ([]*rotationDomain.StoredValue, error) {
	ref, err := resolveColumn(entityType, field, quoteMySQL)
	if err != nil {
		return nil, err
	}
	querier := database.GetTx(ctx, m.db)

	query := fmt.Sprintf(
		"SELECT CAST(id AS CHAR), %s FROM %s WHERE %s IS NOT NULL AND %s NOT LIKE ? ORDER BY id LIMIT ?",
		ref.column, ref.table, ref.column, ref.column,
	)

	rows, err := querier.QueryContext(ctx, query, likePrefix(activeMarker), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to fetch batch")
	}
	return scanStoredValues(rows)
}

// WriteBack replaces current with payload only if the column still holds current.Value.
func (m *MySQLRecordStore) WriteBack(
	ctx context.Context,
	entityType, field string,
	current *rotationDomain.StoredValue,
	payload *cryptoDomain.EncryptedPayload,
) error {
	ref, err := resolveColumn(entityType, field, quoteMySQL)
	if err != nil {
		return err
	}
	querier := database.GetTx(ctx, m.db)

	var result sql.Result
	if payload.SearchHash != "" {
		query := fmt.Sprintf(
			"UPDATE %s SET %s = ?, %s = ? WHERE id = ? AND %s = ?",
			ref.table, ref.column, ref.search, ref.column,
		)
		result, err = querier.ExecContext(ctx, query, payload.String(), payload.SearchHash, current.ID, current.Value)
	} else {
		query := fmt.Sprintf(
			"UPDATE %s SET %s = ? WHERE id = ? AND %s = ?",
			ref.table, ref.column, ref.column,
		)
		result, err = querier.ExecContext(ctx, query, payload.String(), current.ID, current.Value)
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to write back value")
	}
	return checkWriteBack(result)
}

// ValidateSample checks up to sampleSize random non-NULL values.
func (m *MySQLRecordStore) ValidateSample(
	ctx context.Context,
	entityType, field string,
	sampleSize int,
	verify func(value string) error,
) (int, error) {
	ref, err := resolveColumn(entityType, field, quoteMySQL)
	if err != nil {
		return 0, err
	}
	querier := database.GetTx(ctx, m.db)

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s IS NOT NULL ORDER BY RAND() LIMIT ?",
		ref.column, ref.table, ref.column,
	)

	rows, err := querier.QueryContext(ctx, query, sampleSize)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to sample values")
	}
	return verifySample(rows, verify)
}
