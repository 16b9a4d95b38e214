// Package repository implements persistence for key rotation: the SQL record store that
// reads and rewrites encrypted columns, and the key metadata repositories.
//
// Encrypted columns are addressed by table and column name taken from configuration. Both
// are validated as plain identifiers before being quoted into a statement; values always
// travel as bind parameters.
package repository

import (
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/allisson/fieldcrypt/internal/errors"
	recordDomain "github.com/allisson/fieldcrypt/internal/record/domain"
	rotationDomain "github.com/allisson/fieldcrypt/internal/rotation/domain"
)

// columnRef is a validated table/column pair with its search companion column.
type columnRef struct {
	table  string
	column string
	search string
}

// resolveColumn validates entityType and field and quotes them with quote.
func resolveColumn(entityType, field string, quote func(string) string) (columnRef, error) {
	spec := recordDomain.FieldSpec{EntityType: entityType, Field: field}
	if err := spec.Validate(); err != nil {
		return columnRef{}, fmt.Errorf("%w: %v", recordDomain.ErrInvalidTarget, err)
	}
	return columnRef{
		table:  quote(entityType),
		column: quote(field),
		search: quote(recordDomain.SearchField(field)),
	}, nil
}

func quotePostgreSQL(identifier string) string {
	return `"` + identifier + `"`
}

func quoteMySQL(identifier string) string {
	return "`" + identifier + "`"
}

// likePrefix builds a LIKE pattern matching values that start with prefix.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return fmt.Sprintf("%s%%", r.Replace(prefix))
}

func scanStoredValues(rows *sql.Rows) ([]*rotationDomain.StoredValue, error) {
	defer func() {
		_ = rows.Close()
	}()

	var values []*rotationDomain.StoredValue
	for rows.Next() {
		var value rotationDomain.StoredValue
		if err := rows.Scan(&value.ID, &value.Value); err != nil {
			return nil, err
		}
		values = append(values, &value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// verifySample reads every sampled value before verifying, so the connection is released
// while decrypting.
func verifySample(rows *sql.Rows, verify func(value string) error) (int, error) {
	values, err := func() ([]string, error) {
		defer func() {
			_ = rows.Close()
		}()
		var values []string
		for rows.Next() {
			var value string
			if err := rows.Scan(&value); err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		return values, rows.Err()
	}()
	if err != nil {
		return 0, err
	}

	for i, value := range values {
		if err := verify(value); err != nil {
			return i, err
		}
	}
	return len(values), nil
}

// checkWriteBack accepts a statement that matched no row: the value was changed
// concurrently and is no longer the one that was read.
func checkWriteBack(result sql.Result) error {
	if _, err := result.RowsAffected(); err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	return nil
}
