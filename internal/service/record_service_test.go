// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/tryoffset/registry/internal/domain"
)

// memoryStore mimics the records table: unique on id, project_name and
// serial_number, insert-only.
type memoryStore struct {
	mu      sync.Mutex
	records map[string]domain.Record

	insertErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]domain.Record)}
}

func (s *memoryStore) Insert(_ context.Context, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}

	if _, ok := s.records[rec.ID]; ok {
		return domain.ErrDuplicateRecord
	}
	for _, existing := range s.records {
		if existing.ProjectName == rec.ProjectName || existing.SerialNumber == rec.SerialNumber {
			return domain.ErrConflict
		}
	}

	s.records[rec.ID] = rec
	return nil
}

func (s *memoryStore) Lookup(_ context.Context, id string) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

// memoryLedger mimics the events table: auto-increment ids, referential
// integrity against the store, ordered reads.
type memoryLedger struct {
	mu     sync.Mutex
	store  *memoryStore
	events []domain.Event
	nextID int64

	appendErr error
}

func newMemoryLedger(store *memoryStore) *memoryLedger {
	return &memoryLedger{store: store, nextID: 1}
}

func (l *memoryLedger) Append(_ context.Context, recordID string, eventType domain.EventType, ts time.Time) (domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.appendErr != nil {
		return domain.Event{}, l.appendErr
	}

	l.store.mu.Lock()
	_, exists := l.store.records[recordID]
	l.store.mu.Unlock()
	if !exists {
		return domain.Event{}, domain.ErrUnknownRecord
	}

	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	ev := domain.Event{
		ID:        l.nextID,
		RecordID:  recordID,
		Type:      eventType,
		Timestamp: ts,
	}
	l.nextID++
	l.events = append(l.events, ev)
	return ev, nil
}

func (l *memoryLedger) ListFor(_ context.Context, recordID string) ([]domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Event, 0, 4)
	for _, ev := range l.events {
		if ev.RecordID == recordID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() (*RecordService, *memoryStore, *memoryLedger) {
	store := newMemoryStore()
	ledger := newMemoryLedger(store)
	return NewRecordService(store, ledger, discardLogger()), store, ledger
}

func solarFarmParams() domain.CreateRecordParams {
	return domain.CreateRecordParams{
		ProjectName:  "SolarFarmA",
		Registry:     "VERRA",
		Vintage:      2021,
		Quantity:     500,
		SerialNumber: "SN-001",
	}
}

func TestCreateReturnsRecordWithCreatedEvent(t *testing.T) {
	svc, _, _ := newTestService()

	rec, err := svc.Create(context.Background(), solarFarmParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sum := sha256.Sum256([]byte("SolarFarmA_VERRA_2021_SN-001"))
	if want := hex.EncodeToString(sum[:]); rec.ID != want {
		t.Fatalf("expected id %s got %s", want, rec.ID)
	}

	if len(rec.Events) != 1 {
		t.Fatalf("expected 1 event got %d", len(rec.Events))
	}
	if rec.Events[0].Type != domain.EventCreated {
		t.Fatalf("expected created event got %s", rec.Events[0].Type)
	}
	if time.Since(rec.Events[0].Timestamp) > time.Minute {
		t.Fatalf("expected a recent timestamp, got %v", rec.Events[0].Timestamp)
	}
	if rec.Status() != domain.RecordActive {
		t.Fatalf("expected active status got %s", rec.Status())
	}
}

func TestCreateIdempotentForIdenticalSubmission(t *testing.T) {
	svc, store, ledger := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, solarFarmParams())
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Quantity does not contribute to the id, so a resubmission that only
	// differs there still maps to the same record.
	again := solarFarmParams()
	again.Quantity = 900

	second, err := svc.Create(ctx, again)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same id, got %s and %s", first.ID, second.ID)
	}
	if second.Quantity != 500 {
		t.Fatalf("expected stored quantity 500 got %d", second.Quantity)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected exactly one stored record got %d", len(store.records))
	}

	events, err := ledger.ListFor(ctx, first.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventCreated {
		t.Fatalf("expected exactly one created event got %v", events)
	}
}

func TestCreateConcurrentDuplicatesSingleWinner(t *testing.T) {
	svc, store, ledger := newTestService()
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := svc.Create(ctx, solarFarmParams())
			ids[i] = rec.ID
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("caller %d: expected id %s got %s", i, ids[0], ids[i])
		}
	}

	if len(store.records) != 1 {
		t.Fatalf("expected exactly one stored record got %d", len(store.records))
	}

	events, err := ledger.ListFor(ctx, ids[0])
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one created event got %d", len(events))
	}
}

func TestCreateConflictOnSerialNumberCollision(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, domain.CreateRecordParams{
		ProjectName: "P1", Registry: "REG", Vintage: 2020, Quantity: 10, SerialNumber: "SN1",
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Different project name means a different derived id, but SN1 is taken.
	_, err := svc.Create(ctx, domain.CreateRecordParams{
		ProjectName: "P2", Registry: "REG", Vintage: 2020, Quantity: 10, SerialNumber: "SN1",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict got %v", err)
	}
}

func TestCreateValidatesParams(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []domain.CreateRecordParams{
		{Registry: "REG", Vintage: 2020, Quantity: 10, SerialNumber: "SN1"},
		{ProjectName: "P1", Vintage: 2020, Quantity: 10, SerialNumber: "SN1"},
		{ProjectName: "P1", Registry: "REG", Vintage: 2020, Quantity: 10},
		{ProjectName: "P1", Registry: "REG", Vintage: 0, Quantity: 10, SerialNumber: "SN1"},
		{ProjectName: "P1", Registry: "REG", Vintage: 2020, Quantity: 0, SerialNumber: "SN1"},
	}
	for i, params := range cases {
		if _, err := svc.Create(ctx, params); !errors.Is(err, domain.ErrInvalidRecordParams) {
			t.Fatalf("case %d: expected ErrInvalidRecordParams got %v", i, err)
		}
	}
}

func TestCreatePropagatesCreatedEventFailure(t *testing.T) {
	svc, store, ledger := newTestService()
	boom := errors.New("ledger down")
	ledger.appendErr = boom

	_, err := svc.Create(context.Background(), solarFarmParams())
	if !errors.Is(err, boom) {
		t.Fatalf("expected ledger error got %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected the insert to have landed, got %d records", len(store.records))
	}
}

func TestGetNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestGetOrdersEventsByTimestampThenID(t *testing.T) {
	svc, _, ledger := newTestService()
	ctx := context.Background()

	rec, err := svc.Create(ctx, solarFarmParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// Appended newest-first; ListFor must still come back oldest-first.
	if _, err := ledger.Append(ctx, rec.ID, domain.EventRetired, base.Add(2*time.Hour)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := ledger.Append(ctx, rec.ID, domain.EventRetired, base.Add(time.Hour)); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Events) != 3 {
		t.Fatalf("expected 3 events got %d", len(got.Events))
	}
	for i := 1; i < len(got.Events); i++ {
		prev, cur := got.Events[i-1], got.Events[i]
		if cur.Timestamp.Before(prev.Timestamp) {
			t.Fatalf("events out of order at %d: %v after %v", i, cur.Timestamp, prev.Timestamp)
		}
		if cur.Timestamp.Equal(prev.Timestamp) && cur.ID < prev.ID {
			t.Fatalf("tie at %d not broken by id", i)
		}
	}
}

func TestRetireNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	if err := svc.Retire(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestRetireAppendsEventWithoutTouchingRecord(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, solarFarmParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Retire(ctx, created.ID); err != nil {
		t.Fatalf("retire: %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.ProjectName != created.ProjectName ||
		got.Registry != created.Registry ||
		got.Vintage != created.Vintage ||
		got.Quantity != created.Quantity ||
		got.SerialNumber != created.SerialNumber {
		t.Fatalf("stored fields changed by retirement: %+v vs %+v", got, created)
	}

	if len(got.Events) != 2 {
		t.Fatalf("expected 2 events got %d", len(got.Events))
	}
	if got.Events[0].Type != domain.EventCreated || got.Events[1].Type != domain.EventRetired {
		t.Fatalf("unexpected event sequence: %v", got.Events)
	}
	if got.Status() != domain.RecordRetired {
		t.Fatalf("expected retired status got %s", got.Status())
	}
}

func TestRetireTwiceAccumulatesEvents(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, solarFarmParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Retire(ctx, created.ID); err != nil {
		t.Fatalf("first retire: %v", err)
	}
	if err := svc.Retire(ctx, created.ID); err != nil {
		t.Fatalf("second retire: %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	retirements := 0
	for _, ev := range got.Events {
		if ev.Type == domain.EventRetired {
			retirements++
		}
	}
	if retirements != 2 {
		t.Fatalf("expected 2 retired events got %d", retirements)
	}
}
