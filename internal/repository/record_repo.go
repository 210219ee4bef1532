// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tryoffset/registry/internal/domain"
)

// RecordRepository is the durable store for records. It exposes insert and
// lookup only; the immutability of records is enforced here by simply not
// having update or delete methods.
type RecordRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewRecordRepository(pool *pgxpool.Pool, logger *slog.Logger) *RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &RecordRepository{
		pool:   pool,
		logger: logger,
	}
}

// Insert adds a new record. A collision on the derived id comes back as
// domain.ErrDuplicateRecord; a collision on project_name or serial_number
// under a different id comes back as domain.ErrConflict.
func (r *RecordRepository) Insert(ctx context.Context, rec domain.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO records (id, project_name, registry, vintage, quantity, serial_number)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		rec.ID,
		rec.ProjectName,
		rec.Registry,
		rec.Vintage,
		rec.Quantity,
		rec.SerialNumber,
	)
	if err != nil {
		classified := classifyConstraintError(err)
		if errors.Is(classified, domain.ErrDuplicateRecord) {
			// Expected under concurrent duplicate submissions; the service
			// reconciles it, so debug is enough.
			r.logger.Debug("insert record hit existing id", "record_id", rec.ID)
			return classified
		}
		if errors.Is(classified, domain.ErrConflict) {
			r.logger.Warn("insert record unique conflict",
				"record_id", rec.ID,
				"project_name", rec.ProjectName,
				"serial_number", rec.SerialNumber,
			)
			return classified
		}

		r.logger.Error("insert record failed", "record_id", rec.ID, "error", err)
		return err
	}

	return nil
}

// Lookup returns the stored record without its event history.
func (r *RecordRepository) Lookup(ctx context.Context, id string) (domain.Record, error) {
	var rec domain.Record
	err := r.pool.QueryRow(ctx, `
		SELECT id, project_name, registry, vintage, quantity, serial_number
		FROM records
		WHERE id=$1
	`, id).Scan(
		&rec.ID,
		&rec.ProjectName,
		&rec.Registry,
		&rec.Vintage,
		&rec.Quantity,
		&rec.SerialNumber,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, domain.ErrNotFound
		}
		r.logger.Error("lookup record failed", "record_id", id, "error", err)
		return domain.Record{}, err
	}

	return rec, nil
}
