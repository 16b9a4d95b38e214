package repository

import (
	"database/sql"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeyMetadata(row rowScanner) (*cryptoDomain.KeyMetadata, error) {
	var (
		metadata  cryptoDomain.KeyMetadata
		rotatedAt sql.NullTime
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&metadata.KeyID,
		&metadata.Version,
		&metadata.Algorithm,
		&metadata.Status,
		&metadata.Usage.Encryptions,
		&metadata.Usage.Decryptions,
		&metadata.CreatedAt,
		&rotatedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	metadata.CreatedAt = metadata.CreatedAt.UTC()
	if rotatedAt.Valid {
		t := rotatedAt.Time.UTC()
		metadata.RotatedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		metadata.ExpiresAt = &t
	}
	return &metadata, nil
}

func scanKeyMetadataRows(rows *sql.Rows) ([]*cryptoDomain.KeyMetadata, error) {
	defer func() {
		_ = rows.Close()
	}()

	var list []*cryptoDomain.KeyMetadata
	for rows.Next() {
		metadata, err := scanKeyMetadata(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, metadata)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
