// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tryoffset/registry/internal/domain"
	"github.com/tryoffset/registry/internal/metrics"
)

// RecordStore is the durable keyed storage for records. Insert reports a
// derived-id collision as domain.ErrDuplicateRecord and a secondary unique
// collision as domain.ErrConflict.
type RecordStore interface {
	Insert(ctx context.Context, rec domain.Record) error
	Lookup(ctx context.Context, id string) (domain.Record, error)
}

// EventLedger is the append-only per-record event log. A zero timestamp on
// Append means "now".
type EventLedger interface {
	Append(ctx context.Context, recordID string, eventType domain.EventType, ts time.Time) (domain.Event, error)
	ListFor(ctx context.Context, recordID string) ([]domain.Event, error)
}

// RecordService orchestrates id derivation, the record store and the event
// ledger. All cross-request coordination is delegated to the store's unique
// constraints; the service itself holds no locks.
type RecordService struct {
	store  RecordStore
	ledger EventLedger
	logger *slog.Logger
}

func NewRecordService(store RecordStore, ledger EventLedger, logger *slog.Logger) *RecordService {
	if logger == nil {
		logger = slog.Default()
	}

	return &RecordService{
		store:  store,
		ledger: ledger,
		logger: logger,
	}
}

// Create registers a record, or returns the existing one when an identical
// submission already landed.
//
// The insert-then-reconcile protocol: derive the id, attempt the insert, and
// on a primary-key collision look the record up and return it as if this
// call had created it. The first successful inserter writes the single
// "created" event; every concurrent duplicate observes the same record with
// no error and no extra event. A collision on project name or serial number
// under a different id is a real conflict and propagates as
// domain.ErrConflict.
func (s *RecordService) Create(ctx context.Context, params domain.CreateRecordParams) (domain.Record, error) {
	if err := validateCreateParams(params); err != nil {
		return domain.Record{}, err
	}

	id := domain.DeriveRecordID(params.ProjectName, params.Registry, params.Vintage, params.SerialNumber)
	rec := domain.Record{
		ID:           id,
		ProjectName:  params.ProjectName,
		Registry:     params.Registry,
		Vintage:      params.Vintage,
		Quantity:     params.Quantity,
		SerialNumber: params.SerialNumber,
	}

	err := s.store.Insert(ctx, rec)
	switch {
	case err == nil:
		ev, appendErr := s.ledger.Append(ctx, id, domain.EventCreated, time.Time{})
		if appendErr != nil {
			// The record was just inserted, so an unknown-record failure
			// here is an internal consistency fault, not a caller problem.
			s.logger.Error("append created event failed", "record_id", id, "error", appendErr)
			return domain.Record{}, appendErr
		}

		rec.Events = []domain.Event{ev}
		metrics.IncRecordCreated()
		metrics.IncRecordEvent(string(domain.EventCreated))
		s.logger.Info("record created", "record_id", id, "project_name", params.ProjectName)
		return rec, nil

	case errors.Is(err, domain.ErrDuplicateRecord):
		// Benign race: someone else inserted the identical record first.
		metrics.IncCreateDuplicate()
		s.logger.Info("create reconciled to existing record", "record_id", id)

		existing, lookupErr := s.Get(ctx, id)
		if lookupErr != nil {
			s.logger.Error("reconcile lookup failed", "record_id", id, "error", lookupErr)
			return domain.Record{}, lookupErr
		}
		return existing, nil

	case errors.Is(err, domain.ErrConflict):
		metrics.IncCreateConflict()
		return domain.Record{}, err

	default:
		return domain.Record{}, err
	}
}

// Get returns the record with its full event history, ordered ascending by
// (timestamp, id).
func (s *RecordService) Get(ctx context.Context, id string) (domain.Record, error) {
	started := time.Now()

	rec, err := s.store.Lookup(ctx, id)
	if err != nil {
		return domain.Record{}, err
	}

	events, err := s.ledger.ListFor(ctx, id)
	if err != nil {
		return domain.Record{}, err
	}
	rec.Events = events

	metrics.ObserveLookupDuration(time.Since(started))
	return rec, nil
}

// Retire appends a retirement event. The record's stored fields are not
// touched; retired status is carried entirely by the ledger. Nothing guards
// against retiring twice -- repeated calls accumulate further events.
func (s *RecordService) Retire(ctx context.Context, id string) error {
	if _, err := s.store.Lookup(ctx, id); err != nil {
		return err
	}

	if _, err := s.ledger.Append(ctx, id, domain.EventRetired, time.Time{}); err != nil {
		s.logger.Error("append retired event failed", "record_id", id, "error", err)
		return err
	}

	metrics.IncRecordEvent(string(domain.EventRetired))
	s.logger.Info("record retired", "record_id", id)
	return nil
}

func validateCreateParams(params domain.CreateRecordParams) error {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(params.ProjectName) == "" {
		missing = append(missing, "project_name")
	}
	if strings.TrimSpace(params.Registry) == "" {
		missing = append(missing, "registry")
	}
	if strings.TrimSpace(params.SerialNumber) == "" {
		missing = append(missing, "serial_number")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidRecordParams, strings.Join(missing, ", "))
	}

	if params.Vintage <= 0 {
		return fmt.Errorf("%w: vintage must be positive", domain.ErrInvalidRecordParams)
	}
	if params.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidRecordParams)
	}

	return nil
}
