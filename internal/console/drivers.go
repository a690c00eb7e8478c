package console

import (
	"context"
	"fmt"
	"time"

	"ride-admin/internal/backend"
	"ride-admin/internal/listview"
	"ride-admin/internal/logger"
	"ride-admin/internal/models"
)

// DriverBackend is the direct-table surface the drivers screen needs.
type DriverBackend interface {
	ListDrivers(ctx context.Context) ([]models.Driver, error)
	UpdateDriverStatus(ctx context.Context, driverID string, status models.VerificationStatus) error
	UpdateDriverAvailability(ctx context.Context, driverID string, available bool) error
	ListDocuments(ctx context.Context, driverID string) ([]models.Document, error)
	ListActivityLogs(ctx context.Context, subjectID string) ([]models.ActivityLog, error)
}

// DriverFunctions are the privileged operations behind the drivers screen.
// Direct driver-table access is routinely denied for support-role sessions,
// so most of these double as the elevated fallback path.
type DriverFunctions interface {
	FetchDrivers(ctx context.Context) ([]models.Driver, error)
	FetchDriverDocuments(ctx context.Context, driverID string) ([]models.Document, error)
	FetchDriverLogs(ctx context.Context, driverID string) ([]models.ActivityLog, error)
	ApproveDriver(ctx context.Context, driverID string) error
	DeclineDriver(ctx context.Context, driverID, reason string) error
	ToggleDriverAvailability(ctx context.Context, driverID string, available bool) error
	CreateDriverProfile(ctx context.Context, userID string) (models.Driver, error)
}

// DriverFilter holds the categorical predicates of the drivers screen.
type DriverFilter struct {
	Status    models.VerificationStatus
	Available *bool
	Kind      models.ListingKind
}

// DriverStore is the drivers screen's store. Its rows are a tagged union:
// real driver profiles plus partner-role users with no profile yet, which
// the screen offers to materialize.
type DriverStore struct {
	cache     *cache[models.Driver]
	partners  *cache[models.User]
	backend   DriverBackend
	functions DriverFunctions
	recorder  Recorder
	rollback  bool

	now  func() time.Time
	view listview.View[models.DriverListing]
}

// NewDriverStore builds a drivers store. recorder may be nil.
func NewDriverStore(db DriverBackend, fns DriverFunctions, recorder Recorder, cfg StoreConfig) *DriverStore {
	return &DriverStore{
		cache:     newCache[models.Driver](),
		partners:  newCache[models.User](),
		backend:   db,
		functions: fns,
		recorder:  recorder,
		rollback:  cfg.RollbackOnFailure,
		now:       time.Now,
		view:      driverView(),
	}
}

func driverView() listview.View[models.DriverListing] {
	return listview.View[models.DriverListing]{
		SearchText: func(l models.DriverListing) []string {
			if l.Partner != nil {
				return []string{l.Partner.Name, l.Partner.Email}
			}
			if l.Profile != nil {
				return []string{l.Profile.ID, l.Profile.UserID, string(l.Profile.Status)}
			}
			return nil
		},
		SortFields: map[string]listview.Comparator[models.DriverListing]{
			"status": func(a, b models.DriverListing) int {
				return listview.CompareStrings(listingStatus(a), listingStatus(b))
			},
			"created_at": func(a, b models.DriverListing) int {
				return listview.CompareTimes(listingCreated(a), listingCreated(b))
			},
		},
		DateLike: map[string]bool{"created_at": true},
		Date: func(l models.DriverListing) (time.Time, bool) {
			t := listingCreated(l)
			return t, !t.IsZero()
		},
	}
}

func listingStatus(l models.DriverListing) string {
	if l.Profile != nil {
		return string(l.Profile.Status)
	}
	return string(models.ListingPartnerOnly)
}

func listingCreated(l models.DriverListing) time.Time {
	if l.Profile != nil {
		return l.Profile.CreatedAt
	}
	if l.Partner != nil {
		return l.Partner.CreatedAt
	}
	return time.Time{}
}

func driverKey(d models.Driver) string { return d.ID }

// Refresh re-fetches driver profiles, falling back to the privileged
// fetch-drivers function when the direct read is denied. partners is the
// current partner-role user set, used to derive profile-less rows.
func (s *DriverStore) Refresh(ctx context.Context, partners []models.User) error {
	gen := s.cache.begin()

	drivers, mode, err := backend.Read(ctx, s.backend.ListDrivers, s.functions.FetchDrivers, func() []models.Driver {
		return nil
	})
	if err != nil {
		return err
	}

	if !s.cache.complete(gen, drivers, driverKey, mode) {
		logger.Debug("Discarding superseded driver refresh", "generation", gen)
		return nil
	}

	pgen := s.partners.begin()
	s.partners.complete(pgen, partners, userKey, backend.ModeDirect)
	return nil
}

// Listings assembles the tagged-union row set: every profile, plus every
// partner user without one.
func (s *DriverStore) Listings() []models.DriverListing {
	drivers := s.cache.snapshot()
	byUser := make(map[string]bool, len(drivers))

	listings := make([]models.DriverListing, 0, len(drivers))
	for i := range drivers {
		d := drivers[i]
		byUser[d.UserID] = true
		listings = append(listings, models.DriverListing{Kind: models.ListingProfile, Profile: &d})
	}

	for _, p := range s.partners.snapshot() {
		if byUser[p.ID] {
			continue
		}
		partner := p
		listings = append(listings, models.DriverListing{Kind: models.ListingPartnerOnly, Partner: &partner})
	}
	return listings
}

// List derives the screen's projection.
func (s *DriverStore) List(q listview.Query, f DriverFilter) listview.Page[models.DriverListing] {
	var preds []func(models.DriverListing) bool
	if f.Kind != "" {
		preds = append(preds, func(l models.DriverListing) bool { return l.Kind == f.Kind })
	}
	if f.Status != "" {
		preds = append(preds, func(l models.DriverListing) bool {
			return l.Profile != nil && l.Profile.Status == f.Status
		})
	}
	if f.Available != nil {
		want := *f.Available
		preds = append(preds, func(l models.DriverListing) bool {
			return l.Profile != nil && l.Profile.Available == want
		})
	}
	return s.view.Derive(s.Listings(), q, s.now(), preds...)
}

// Get returns one cached driver profile.
func (s *DriverStore) Get(driverID string) (models.Driver, bool) {
	return s.cache.get(driverID)
}

// Unsynced returns the driver ids whose local value has not reached the
// server.
func (s *DriverStore) Unsynced() map[string]bool {
	return s.cache.unsynced()
}

// DefaultDesc reports the default direction when sorting by field.
func (s *DriverStore) DefaultDesc(field string) bool {
	return s.view.DefaultDesc(field)
}

// mutate applies patch optimistically and reconciles through the fallback
// write path, elevating to fn when the direct write is denied.
func (s *DriverStore) mutate(ctx context.Context, driverID, actorID, action, details string, patch func(*models.Driver), direct func(context.Context) error, elevated func(context.Context) error) (Outcome, error) {
	prev, ok := s.cache.get(driverID)
	if !ok {
		return Outcome{}, fmt.Errorf("driver %s: %w", driverID, ErrNotFound)
	}

	next := prev
	patch(&next)
	next.UpdatedAt = s.now()
	s.cache.put(driverID, next)

	mode, err := backend.Write(ctx, direct, elevated)
	if err != nil {
		if s.rollback {
			s.cache.put(driverID, prev)
		} else {
			s.cache.setDirty(driverID, true)
		}
		return Outcome{}, err
	}

	s.cache.setDirty(driverID, mode == backend.ModeLocalOnly)
	if mode.Persisted() && s.recorder != nil {
		s.recorder.Record(ctx, driverID, actorID, action, details)
	}
	return outcomeFor(mode), nil
}

// Approve marks a driver verified.
func (s *DriverStore) Approve(ctx context.Context, driverID, actorID string) (Outcome, error) {
	prev, ok := s.cache.get(driverID)
	if !ok {
		return Outcome{}, fmt.Errorf("driver %s: %w", driverID, ErrNotFound)
	}
	details := fmt.Sprintf("verification: %s -> %s", prev.Status, models.DriverVerified)
	return s.mutate(ctx, driverID, actorID, "driver.approved", details,
		func(d *models.Driver) { d.Status = models.DriverVerified },
		func(ctx context.Context) error {
			return s.backend.UpdateDriverStatus(ctx, driverID, models.DriverVerified)
		},
		func(ctx context.Context) error {
			return s.functions.ApproveDriver(ctx, driverID)
		},
	)
}

// Decline marks a driver declined.
func (s *DriverStore) Decline(ctx context.Context, driverID, reason, actorID string) (Outcome, error) {
	prev, ok := s.cache.get(driverID)
	if !ok {
		return Outcome{}, fmt.Errorf("driver %s: %w", driverID, ErrNotFound)
	}
	details := fmt.Sprintf("verification: %s -> %s (%s)", prev.Status, models.DriverDeclined, reason)
	return s.mutate(ctx, driverID, actorID, "driver.declined", details,
		func(d *models.Driver) { d.Status = models.DriverDeclined },
		func(ctx context.Context) error {
			return s.backend.UpdateDriverStatus(ctx, driverID, models.DriverDeclined)
		},
		func(ctx context.Context) error {
			return s.functions.DeclineDriver(ctx, driverID, reason)
		},
	)
}

// ToggleAvailability flips a driver's availability flag. Verification
// status is untouched.
func (s *DriverStore) ToggleAvailability(ctx context.Context, driverID, actorID string) (Outcome, error) {
	prev, ok := s.cache.get(driverID)
	if !ok {
		return Outcome{}, fmt.Errorf("driver %s: %w", driverID, ErrNotFound)
	}
	next := !prev.Available
	details := fmt.Sprintf("available: %t -> %t", prev.Available, next)
	return s.mutate(ctx, driverID, actorID, "driver.availability_toggled", details,
		func(d *models.Driver) { d.Available = next },
		func(ctx context.Context) error {
			return s.backend.UpdateDriverAvailability(ctx, driverID, next)
		},
		func(ctx context.Context) error {
			return s.functions.ToggleDriverAvailability(ctx, driverID, next)
		},
	)
}

// Documents fetches a driver's uploaded documents, elevating when denied.
func (s *DriverStore) Documents(ctx context.Context, driverID string) ([]models.Document, backend.Mode, error) {
	return backend.Read(ctx,
		func(ctx context.Context) ([]models.Document, error) {
			return s.backend.ListDocuments(ctx, driverID)
		},
		func(ctx context.Context) ([]models.Document, error) {
			return s.functions.FetchDriverDocuments(ctx, driverID)
		},
		func() []models.Document { return nil },
	)
}

// Logs fetches a driver's activity trail, elevating when denied.
func (s *DriverStore) Logs(ctx context.Context, driverID string) ([]models.ActivityLog, backend.Mode, error) {
	return backend.Read(ctx,
		func(ctx context.Context) ([]models.ActivityLog, error) {
			return s.backend.ListActivityLogs(ctx, driverID)
		},
		func(ctx context.Context) ([]models.ActivityLog, error) {
			return s.functions.FetchDriverLogs(ctx, driverID)
		},
		func() []models.ActivityLog { return nil },
	)
}

// MaterializeProfile creates a driver profile for a partner user that has
// none, through the privileged function. Hard errors propagate.
func (s *DriverStore) MaterializeProfile(ctx context.Context, userID, actorID string) (models.Driver, error) {
	driver, err := s.functions.CreateDriverProfile(ctx, userID)
	if err != nil {
		return models.Driver{}, err
	}

	s.cache.put(driver.ID, driver)
	s.partners.remove(userID)
	if s.recorder != nil {
		s.recorder.Record(ctx, driver.ID, actorID, "driver.profile_created", "materialized for partner "+userID)
	}
	return driver, nil
}
