// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tryoffset/registry/internal/domain"
)

const (
	sqlstateUniqueViolation     = "23505"
	sqlstateForeignKeyViolation = "23503"

	recordsPrimaryKeyConstraint = "records_pkey"
)

// classifyConstraintError maps Postgres constraint violations onto the
// domain error taxonomy. A unique violation on the records primary key is
// the benign concurrent-create case; unique violations on any other
// constraint (project_name, serial_number) are genuine conflicts. Foreign
// key violations mean an event append referenced a missing record.
func classifyConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case sqlstateUniqueViolation:
		if pgErr.ConstraintName == recordsPrimaryKeyConstraint {
			return domain.ErrDuplicateRecord
		}
		return domain.ErrConflict
	case sqlstateForeignKeyViolation:
		return domain.ErrUnknownRecord
	default:
		return err
	}
}
