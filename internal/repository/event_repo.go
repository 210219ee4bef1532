// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tryoffset/registry/internal/domain"
)

// EventRepository is the append-only ledger of record lifecycle events.
// Events are never updated or deleted, and nothing deduplicates them: a
// record retired twice carries two retirement events.
type EventRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewEventRepository(pool *pgxpool.Pool, logger *slog.Logger) *EventRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &EventRepository{
		pool:   pool,
		logger: logger,
	}
}

// Append inserts one event. A zero ts means "now". Referential integrity is
// the database's: appending against a missing record returns
// domain.ErrUnknownRecord.
func (r *EventRepository) Append(ctx context.Context, recordID string, eventType domain.EventType, ts time.Time) (domain.Event, error) {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	ev := domain.Event{
		RecordID:  recordID,
		Type:      eventType,
		Timestamp: ts,
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO events (record_id, event_type, "timestamp")
		VALUES ($1, $2, $3)
		RETURNING id
	`,
		recordID,
		eventType,
		ts,
	).Scan(&ev.ID)
	if err != nil {
		classified := classifyConstraintError(err)
		if errors.Is(classified, domain.ErrUnknownRecord) {
			r.logger.Error("append event for unknown record",
				"record_id", recordID,
				"event_type", eventType,
			)
			return domain.Event{}, classified
		}

		r.logger.Error("append event failed",
			"record_id", recordID,
			"event_type", eventType,
			"error", err,
		)
		return domain.Event{}, err
	}

	return ev, nil
}

// ListFor returns the record's events ascending by (timestamp, id). An
// unknown record yields an empty slice, not an error.
func (r *EventRepository) ListFor(ctx context.Context, recordID string) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, record_id, event_type, "timestamp"
		FROM events
		WHERE record_id=$1
		ORDER BY "timestamp" ASC, id ASC
	`, recordID)
	if err != nil {
		r.logger.Error("list events query failed", "record_id", recordID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Event, 0, 4)
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(
			&ev.ID,
			&ev.RecordID,
			&ev.Type,
			&ev.Timestamp,
		); err != nil {
			r.logger.Error("scan event row failed", "record_id", recordID, "error", err)
			return nil, err
		}
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("events rows iteration failed", "record_id", recordID, "error", err)
		return nil, err
	}

	return out, nil
}
