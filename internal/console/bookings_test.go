package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ride-admin/internal/backend"
	"ride-admin/internal/listview"
	"ride-admin/internal/models"
)

type fakeTripBackend struct {
	trips []models.Trip

	listErr   error
	insertErr error
	updateErr error

	inserted []models.Trip
	updated  []models.Trip
}

func (f *fakeTripBackend) ListTrips(ctx context.Context) ([]models.Trip, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Trip(nil), f.trips...), nil
}

func (f *fakeTripBackend) InsertTrip(ctx context.Context, t models.Trip) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, t)
	return nil
}

func (f *fakeTripBackend) UpdateTrip(ctx context.Context, t models.Trip) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, t)
	return nil
}

func testTrips() []models.Trip {
	return []models.Trip{
		{
			ID:           "t1",
			Ref:          "REF-1000",
			ScheduledAt:  storeTestNow.Add(-24 * time.Hour),
			CustomerName: "John Smith",
			Status:       models.TripCompleted,
			Priority:     models.PriorityNormal,
			Notes:        "frequent rider",
			BasePrice:    30,
			CustomFees:   []models.CustomFee{{Name: "Airport fee", Amount: 5}},
		},
		{
			ID:           "t2",
			Ref:          "REF-1001",
			ScheduledAt:  storeTestNow.Add(2 * time.Hour),
			CustomerName: "Alice Wong",
			Status:       models.TripPending,
			Priority:     models.PriorityUrgent,
			BasePrice:    20,
		},
		{
			ID:           "t3",
			Ref:          "REF-1002",
			ScheduledAt:  storeTestNow.Add(4 * time.Hour),
			CustomerName: "Bob Jones",
			Status:       models.TripPending,
			Priority:     models.PriorityHigh,
			BasePrice:    25,
		},
	}
}

func newBookingFixture(t *testing.T, tb *fakeTripBackend, cfg StoreConfig) (*BookingStore, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	s := NewBookingStore(tb, rec, nil, cfg)
	s.now = func() time.Time { return storeTestNow }
	seq := 0
	s.newID = func() string {
		seq++
		return fmt.Sprintf("aaaa%04d-0000-0000-0000-000000000000", seq)
	}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return s, rec
}

func TestBookingDuplicate(t *testing.T) {
	tb := &fakeTripBackend{trips: testTrips()}
	s, rec := newBookingFixture(t, tb, StoreConfig{})

	dup, outcome, err := s.Duplicate(context.Background(), "t1", "admin-1")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}

	src, _ := s.Get("t1")
	if dup.ID == src.ID || dup.Ref == src.Ref {
		t.Error("duplicate must get a fresh id and reference")
	}
	if !strings.HasPrefix(dup.Ref, "REF-") {
		t.Errorf("ref %q lacks prefix", dup.Ref)
	}
	if dup.Status != models.TripPending {
		t.Errorf("status = %s, want pending even though the source is completed", dup.Status)
	}
	if dup.CustomerName != src.CustomerName || dup.BasePrice != src.BasePrice {
		t.Error("customer and pricing fields must carry over")
	}
	if !strings.Contains(dup.Notes, "Duplicated from REF-1000") {
		t.Errorf("notes %q lack provenance", dup.Notes)
	}
	if dup.LastReminderAt != nil || dup.DriverID != nil {
		t.Error("reminder and driver assignment must not carry over")
	}
	if len(tb.inserted) != 1 {
		t.Fatalf("inserted %d trips, want 1", len(tb.inserted))
	}
	if outcome.Mode != backend.ModeDirect {
		t.Errorf("mode = %v, want direct", outcome.Mode)
	}
	if _, ok := s.Get(dup.ID); !ok {
		t.Error("duplicate missing from cache")
	}

	entries := rec.all()
	if len(entries) != 1 || entries[0].Action != "booking.duplicated" {
		t.Errorf("unexpected audit entries: %v", entries)
	}

	// The source row is untouched.
	if src.Status != models.TripCompleted || src.Ref != "REF-1000" {
		t.Error("source booking changed by duplication")
	}
}

func TestBookingListPrioritySortDesc(t *testing.T) {
	s, _ := newBookingFixture(t, &fakeTripBackend{trips: testTrips()}, StoreConfig{})

	page := s.List(listview.Query{Sort: "priority", Desc: true}, BookingFilter{})

	if len(page.Items) != 3 {
		t.Fatalf("got %d items", len(page.Items))
	}
	got := []models.Priority{page.Items[0].Priority, page.Items[1].Priority, page.Items[2].Priority}
	if got[0] != models.PriorityUrgent || got[1] != models.PriorityHigh || got[2] != models.PriorityNormal {
		t.Errorf("priority order %v, want urgent, high, normal", got)
	}
}

func TestBookingListFilters(t *testing.T) {
	s, _ := newBookingFixture(t, &fakeTripBackend{trips: testTrips()}, StoreConfig{})

	urgent := models.PriorityUrgent
	page := s.List(listview.Query{}, BookingFilter{Status: models.TripPending, Priority: &urgent})
	if page.Total != 1 || page.Items[0].ID != "t2" {
		t.Errorf("conjunction filter returned %v", page.Items)
	}

	page = s.List(listview.Query{Search: "john", Range: listview.RangePast}, BookingFilter{})
	if page.Total != 1 || page.Items[0].ID != "t1" {
		t.Errorf("search+range returned %v", page.Items)
	}
}

func TestBookingUpdateStatusPersisted(t *testing.T) {
	tb := &fakeTripBackend{trips: testTrips()}
	s, rec := newBookingFixture(t, tb, StoreConfig{})

	outcome, err := s.UpdateStatus(context.Background(), "t2", models.TripAccepted, "admin-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if outcome.Mode != backend.ModeDirect || outcome.Notice != "" {
		t.Errorf("outcome = %+v", outcome)
	}

	got, _ := s.Get("t2")
	if got.Status != models.TripAccepted {
		t.Errorf("status = %s", got.Status)
	}
	if s.Unsynced()["t2"] {
		t.Error("persisted write left the record dirty")
	}

	entries := rec.all()
	if len(entries) != 1 || entries[0].Details != "status: pending -> accepted" {
		t.Errorf("audit entries = %v", entries)
	}
}

func TestBookingMutationLocalOnlyOnPermissionDenial(t *testing.T) {
	tb := &fakeTripBackend{trips: testTrips(), updateErr: backend.ErrPermissionDenied}
	s, rec := newBookingFixture(t, tb, StoreConfig{})

	outcome, err := s.EditNotes(context.Background(), "t2", "call ahead", "admin-1")
	if err != nil {
		t.Fatalf("a permission denial must not surface: %v", err)
	}
	if outcome.Mode != backend.ModeLocalOnly || outcome.Notice == "" {
		t.Errorf("outcome = %+v", outcome)
	}

	got, _ := s.Get("t2")
	if got.Notes != "call ahead" {
		t.Error("optimistic value lost")
	}
	if !s.Unsynced()["t2"] {
		t.Error("local-only write must flag the record unsynced")
	}
	if len(rec.all()) != 0 {
		t.Error("local-only writes must not be audited")
	}
}

func TestBookingMutationHardErrorKeepsDirtyValueByDefault(t *testing.T) {
	tb := &fakeTripBackend{trips: testTrips(), updateErr: errors.New("connection reset")}
	s, _ := newBookingFixture(t, tb, StoreConfig{})

	if _, err := s.EditNotes(context.Background(), "t2", "call ahead", "admin-1"); err == nil {
		t.Fatal("hard error must propagate")
	}

	got, _ := s.Get("t2")
	if got.Notes != "call ahead" {
		t.Error("default policy keeps the divergent local value")
	}
	if !s.Unsynced()["t2"] {
		t.Error("divergent value must be flagged")
	}
}

func TestBookingMutationHardErrorRollsBackWhenConfigured(t *testing.T) {
	tb := &fakeTripBackend{trips: testTrips(), updateErr: errors.New("connection reset")}
	s, _ := newBookingFixture(t, tb, StoreConfig{RollbackOnFailure: true})

	if _, err := s.EditNotes(context.Background(), "t2", "call ahead", "admin-1"); err == nil {
		t.Fatal("hard error must propagate")
	}

	got, _ := s.Get("t2")
	if got.Notes != "" {
		t.Errorf("rollback policy left notes = %q", got.Notes)
	}
	if s.Unsynced()["t2"] {
		t.Error("rolled-back record must not be flagged")
	}
}

func TestBookingSendReminderStampsTime(t *testing.T) {
	tb := &fakeTripBackend{trips: testTrips()}
	s, _ := newBookingFixture(t, tb, StoreConfig{})

	if _, err := s.SendReminder(context.Background(), "t2", "admin-1"); err != nil {
		t.Fatalf("reminder: %v", err)
	}
	got, _ := s.Get("t2")
	if got.LastReminderAt == nil || !got.LastReminderAt.Equal(storeTestNow) {
		t.Errorf("LastReminderAt = %v", got.LastReminderAt)
	}
}

func TestBookingEditFeesChangesTotal(t *testing.T) {
	tb := &fakeTripBackend{trips: testTrips()}
	s, _ := newBookingFixture(t, tb, StoreConfig{})

	fees := []models.CustomFee{
		{Name: "Wait time", Amount: 7.5, CustomerVisible: true},
		{Name: "Cleaning", Amount: 12},
	}
	if _, err := s.EditFees(context.Background(), "t3", fees, "admin-1"); err != nil {
		t.Fatalf("fees: %v", err)
	}
	got, _ := s.Get("t3")
	if got.TotalCharge() != 25+7.5+12 {
		t.Errorf("total = %v", got.TotalCharge())
	}
}

func TestBookingRefreshPlaceholderOnPermissionDenial(t *testing.T) {
	tb := &fakeTripBackend{listErr: backend.ErrPermissionDenied}
	rec := &fakeRecorder{}
	s := NewBookingStore(tb, rec, nil, StoreConfig{})
	s.now = func() time.Time { return storeTestNow }

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("denied list must not fail the refresh: %v", err)
	}
	if s.Degraded() != backend.ModePlaceholder {
		t.Errorf("mode = %v, want placeholder", s.Degraded())
	}
	page := s.List(listview.Query{}, BookingFilter{})
	if page.Total == 0 {
		t.Error("placeholder set is empty")
	}
}

func TestBookingRefreshServesSnapshotWhenUnavailable(t *testing.T) {
	snaps := newFakeSnapshots()
	tb := &fakeTripBackend{trips: testTrips()}
	rec := &fakeRecorder{}
	s := NewBookingStore(tb, rec, snaps, StoreConfig{})
	s.now = func() time.Time { return storeTestNow }

	// A good refresh stores the snapshot.
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	tb.listErr = backend.ErrUnavailable
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("snapshot should absorb the outage: %v", err)
	}
	if s.Degraded() != backend.ModeCached {
		t.Errorf("mode = %v, want cached", s.Degraded())
	}
	if page := s.List(listview.Query{}, BookingFilter{}); page.Total != 3 {
		t.Errorf("cached set has %d records", page.Total)
	}
}

func TestBookingRefreshUnavailableWithoutSnapshotFails(t *testing.T) {
	tb := &fakeTripBackend{listErr: backend.ErrUnavailable}
	s := NewBookingStore(tb, nil, nil, StoreConfig{})

	if err := s.Refresh(context.Background()); !backend.IsUnavailable(err) {
		t.Errorf("err = %v, want unavailable", err)
	}
}

func TestBookingMutateUnknownID(t *testing.T) {
	s, _ := newBookingFixture(t, &fakeTripBackend{trips: testTrips()}, StoreConfig{})

	_, err := s.UpdateStatus(context.Background(), "missing", models.TripAccepted, "admin-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
