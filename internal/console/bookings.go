package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ride-admin/internal/backend"
	"ride-admin/internal/listview"
	"ride-admin/internal/logger"
	"ride-admin/internal/models"
)

const bookingsSnapshotKey = "snapshot:trips"

// TripBackend is the direct-table surface the bookings screen needs.
type TripBackend interface {
	ListTrips(ctx context.Context) ([]models.Trip, error)
	InsertTrip(ctx context.Context, t models.Trip) error
	UpdateTrip(ctx context.Context, t models.Trip) error
}

// BookingFilter holds the categorical predicates of the bookings screen.
type BookingFilter struct {
	Status   models.TripStatus
	Priority *models.Priority
	DriverID string
}

// BookingStore is the bookings screen's store: a trip cache plus the
// mutation handlers behind status, notes, fees, priority, reminders,
// driver assignment and duplication.
type BookingStore struct {
	cache     *cache[models.Trip]
	backend   TripBackend
	recorder  Recorder
	snapshots Snapshots
	rollback  bool

	now   func() time.Time
	newID func() string

	view listview.View[models.Trip]
}

// NewBookingStore builds a bookings store. recorder and snapshots may be nil.
func NewBookingStore(tb TripBackend, recorder Recorder, snapshots Snapshots, cfg StoreConfig) *BookingStore {
	return &BookingStore{
		cache:     newCache[models.Trip](),
		backend:   tb,
		recorder:  recorder,
		snapshots: snapshots,
		rollback:  cfg.RollbackOnFailure,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		view:      bookingView(),
	}
}

func bookingView() listview.View[models.Trip] {
	return listview.View[models.Trip]{
		SearchText: func(t models.Trip) []string {
			fields := []string{t.Ref, t.CustomerName, t.CustomerEmail, t.PickupAddress, t.DropoffAddress, t.Notes}
			if t.CustomerPhone != nil {
				fields = append(fields, *t.CustomerPhone)
			}
			return fields
		},
		SortFields: map[string]listview.Comparator[models.Trip]{
			"scheduled_at": func(a, b models.Trip) int { return listview.CompareTimes(a.ScheduledAt, b.ScheduledAt) },
			"created_at":   func(a, b models.Trip) int { return listview.CompareTimes(a.CreatedAt, b.CreatedAt) },
			"customer":     func(a, b models.Trip) int { return listview.CompareStrings(a.CustomerName, b.CustomerName) },
			"ref":          func(a, b models.Trip) int { return listview.CompareStrings(a.Ref, b.Ref) },
			"priority":     func(a, b models.Trip) int { return listview.CompareNumbers(int(a.Priority), int(b.Priority)) },
			"total":        func(a, b models.Trip) int { return listview.CompareNumbers(a.TotalCharge(), b.TotalCharge()) },
		},
		DateLike: map[string]bool{"scheduled_at": true, "created_at": true},
		Date:     func(t models.Trip) (time.Time, bool) { return t.ScheduledAt, !t.ScheduledAt.IsZero() },
	}
}

// Refresh re-fetches the trip list. A response superseded by a newer refresh
// is discarded. On a network failure the last cached snapshot is substituted
// when one exists.
func (s *BookingStore) Refresh(ctx context.Context) error {
	gen := s.cache.begin()

	trips, mode, err := backend.Read(ctx, s.backend.ListTrips, nil, func() []models.Trip {
		return placeholderTrips(s.now())
	})
	if err != nil {
		if backend.IsUnavailable(err) && s.snapshots != nil {
			var cached []models.Trip
			if s.snapshots.Load(ctx, bookingsSnapshotKey, &cached) {
				logger.Warn("Trip fetch unavailable, serving cached snapshot", "error", err)
				s.cache.complete(gen, cached, tripKey, backend.ModeCached)
				return nil
			}
		}
		return err
	}

	if !s.cache.complete(gen, trips, tripKey, mode) {
		logger.Debug("Discarding superseded trip refresh", "generation", gen)
		return nil
	}

	if mode == backend.ModeDirect && s.snapshots != nil {
		s.snapshots.Store(ctx, bookingsSnapshotKey, trips)
	}
	return nil
}

func tripKey(t models.Trip) string { return t.ID }

// placeholderTrips is the synthetic record set shown when row-level
// security denies the trip list outright.
func placeholderTrips(now time.Time) []models.Trip {
	phone := "+10000000000"
	return []models.Trip{
		{
			ID:            "placeholder-1",
			Ref:           "REF-SAMPLE1",
			ScheduledAt:   now.Add(2 * time.Hour),
			CustomerName:  "Sample Customer",
			CustomerEmail: "mock@example.com",
			CustomerPhone: &phone,
			PickupAddress: "1 Sample Street",
			Status:        models.TripPending,
			BasePrice:     25,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:            "placeholder-2",
			Ref:           "REF-SAMPLE2",
			ScheduledAt:   now.Add(-26 * time.Hour),
			CustomerName:  "Sample Customer Two",
			CustomerEmail: "sample2@example.com",
			PickupAddress: "2 Sample Street",
			Status:        models.TripCompleted,
			BasePrice:     40,
			CreatedAt:     now.Add(-48 * time.Hour),
			UpdatedAt:     now,
		},
	}
}

// List derives the screen's projection from the current cache.
func (s *BookingStore) List(q listview.Query, f BookingFilter) listview.Page[models.Trip] {
	var preds []func(models.Trip) bool
	if f.Status != "" {
		preds = append(preds, func(t models.Trip) bool { return t.Status == f.Status })
	}
	if f.Priority != nil {
		want := *f.Priority
		preds = append(preds, func(t models.Trip) bool { return t.Priority == want })
	}
	if f.DriverID != "" {
		preds = append(preds, func(t models.Trip) bool { return t.DriverID != nil && *t.DriverID == f.DriverID })
	}
	return s.view.Derive(s.cache.snapshot(), q, s.now(), preds...)
}

// Get returns one cached trip.
func (s *BookingStore) Get(id string) (models.Trip, bool) {
	return s.cache.get(id)
}

// Unsynced returns the ids whose local value has not reached the server.
func (s *BookingStore) Unsynced() map[string]bool {
	return s.cache.unsynced()
}

// Degraded reports how the last refresh was sourced.
func (s *BookingStore) Degraded() backend.Mode {
	return s.cache.lastMode()
}

// DefaultDesc reports the default direction when sorting by field.
func (s *BookingStore) DefaultDesc(field string) bool {
	return s.view.DefaultDesc(field)
}

// mutate applies patch optimistically, reconciles through the fallback
// write path, and records the audit entry on a persisted result.
func (s *BookingStore) mutate(ctx context.Context, id, actorID, action, details string, patch func(*models.Trip), elevated func(context.Context) error) (Outcome, error) {
	prev, ok := s.cache.get(id)
	if !ok {
		return Outcome{}, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}

	next := prev
	patch(&next)
	next.UpdatedAt = s.now()
	s.cache.put(id, next)

	mode, err := backend.Write(ctx, func(ctx context.Context) error {
		return s.backend.UpdateTrip(ctx, next)
	}, elevated)
	if err != nil {
		if s.rollback {
			s.cache.put(id, prev)
		} else {
			s.cache.setDirty(id, true)
		}
		return Outcome{}, err
	}

	s.cache.setDirty(id, mode == backend.ModeLocalOnly)
	if mode.Persisted() && s.recorder != nil {
		s.recorder.Record(ctx, id, actorID, action, details)
	}
	return outcomeFor(mode), nil
}

// UpdateStatus moves a booking to status.
func (s *BookingStore) UpdateStatus(ctx context.Context, id string, status models.TripStatus, actorID string) (Outcome, error) {
	prev, ok := s.cache.get(id)
	if !ok {
		return Outcome{}, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	details := fmt.Sprintf("status: %s -> %s", prev.Status, status)
	return s.mutate(ctx, id, actorID, "booking.status_updated", details, func(t *models.Trip) {
		t.Status = status
	}, nil)
}

// EditNotes replaces the admin notes.
func (s *BookingStore) EditNotes(ctx context.Context, id, notes, actorID string) (Outcome, error) {
	return s.mutate(ctx, id, actorID, "booking.notes_edited", "notes updated", func(t *models.Trip) {
		t.Notes = notes
	}, nil)
}

// SetPriority changes the booking priority.
func (s *BookingStore) SetPriority(ctx context.Context, id string, p models.Priority, actorID string) (Outcome, error) {
	prev, ok := s.cache.get(id)
	if !ok {
		return Outcome{}, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	details := fmt.Sprintf("priority: %d -> %d", prev.Priority, p)
	return s.mutate(ctx, id, actorID, "booking.priority_changed", details, func(t *models.Trip) {
		t.Priority = p
	}, nil)
}

// EditFees replaces the custom fee line items.
func (s *BookingStore) EditFees(ctx context.Context, id string, fees []models.CustomFee, actorID string) (Outcome, error) {
	return s.mutate(ctx, id, actorID, "booking.fees_edited", fmt.Sprintf("%d fee line items", len(fees)), func(t *models.Trip) {
		t.CustomFees = fees
	}, nil)
}

// SendReminder stamps the last-reminder timestamp.
func (s *BookingStore) SendReminder(ctx context.Context, id, actorID string) (Outcome, error) {
	when := s.now()
	return s.mutate(ctx, id, actorID, "booking.reminder_sent", "reminder sent", func(t *models.Trip) {
		t.LastReminderAt = &when
	}, nil)
}

// AssignDriver sets or clears the assigned driver.
func (s *BookingStore) AssignDriver(ctx context.Context, id string, driverID *string, actorID string) (Outcome, error) {
	details := "driver unassigned"
	if driverID != nil {
		details = "driver assigned: " + *driverID
	}
	return s.mutate(ctx, id, actorID, "booking.driver_assigned", details, func(t *models.Trip) {
		t.DriverID = driverID
	}, nil)
}

// NewRef generates a fresh booking reference.
func (s *BookingStore) NewRef() string {
	raw := strings.ToUpper(strings.ReplaceAll(s.newID(), "-", ""))
	if len(raw) > 8 {
		raw = raw[:8]
	}
	return "REF-" + raw
}

// Duplicate composes a new booking from a template of the source: fresh id
// and reference, status reset to pending, contact and address fields copied,
// and a provenance note appended. It reuses the same write path as every
// other mutation.
func (s *BookingStore) Duplicate(ctx context.Context, sourceID, actorID string) (models.Trip, Outcome, error) {
	src, ok := s.cache.get(sourceID)
	if !ok {
		return models.Trip{}, Outcome{}, fmt.Errorf("booking %s: %w", sourceID, ErrNotFound)
	}

	now := s.now()
	dup := src
	dup.ID = s.newID()
	dup.Ref = s.NewRef()
	dup.Status = models.TripPending
	dup.LastReminderAt = nil
	dup.DriverID = nil
	dup.CreatedAt = now
	dup.UpdatedAt = now

	provenance := fmt.Sprintf("Duplicated from %s", src.Ref)
	if dup.Notes != "" {
		dup.Notes = dup.Notes + "\n" + provenance
	} else {
		dup.Notes = provenance
	}

	s.cache.put(dup.ID, dup)

	mode, err := backend.Write(ctx, func(ctx context.Context) error {
		return s.backend.InsertTrip(ctx, dup)
	}, nil)
	if err != nil {
		if s.rollback {
			s.cache.remove(dup.ID)
		} else {
			s.cache.setDirty(dup.ID, true)
		}
		return models.Trip{}, Outcome{}, err
	}

	s.cache.setDirty(dup.ID, mode == backend.ModeLocalOnly)
	if mode.Persisted() && s.recorder != nil {
		s.recorder.Record(ctx, dup.ID, actorID, "booking.duplicated", provenance)
	}
	return dup, outcomeFor(mode), nil
}
