package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"ride-admin/internal/backend"
	"ride-admin/internal/listview"
	"ride-admin/internal/models"
)

type fakeDriverBackend struct {
	drivers []models.Driver

	listErr         error
	statusErr       error
	availabilityErr error
	documentsErr    error
	logsErr         error

	statusUpdates       map[string]models.VerificationStatus
	availabilityUpdates map[string]bool
}

func (f *fakeDriverBackend) ListDrivers(ctx context.Context) ([]models.Driver, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Driver(nil), f.drivers...), nil
}

func (f *fakeDriverBackend) UpdateDriverStatus(ctx context.Context, driverID string, status models.VerificationStatus) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	if f.statusUpdates == nil {
		f.statusUpdates = make(map[string]models.VerificationStatus)
	}
	f.statusUpdates[driverID] = status
	return nil
}

func (f *fakeDriverBackend) UpdateDriverAvailability(ctx context.Context, driverID string, available bool) error {
	if f.availabilityErr != nil {
		return f.availabilityErr
	}
	if f.availabilityUpdates == nil {
		f.availabilityUpdates = make(map[string]bool)
	}
	f.availabilityUpdates[driverID] = available
	return nil
}

func (f *fakeDriverBackend) ListDocuments(ctx context.Context, driverID string) ([]models.Document, error) {
	if f.documentsErr != nil {
		return nil, f.documentsErr
	}
	return []models.Document{{ID: "doc1", DriverID: driverID, Type: "license"}}, nil
}

func (f *fakeDriverBackend) ListActivityLogs(ctx context.Context, subjectID string) ([]models.ActivityLog, error) {
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return []models.ActivityLog{{ID: "log1", SubjectID: subjectID}}, nil
}

type fakeDriverFunctions struct {
	fetchErr error

	approved      []string
	declined      map[string]string
	toggled       map[string]bool
	createdFor    []string
	createProfile func(userID string) (models.Driver, error)
}

func (f *fakeDriverFunctions) FetchDrivers(ctx context.Context) ([]models.Driver, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return []models.Driver{{ID: "d-elevated", UserID: "u9", Status: models.DriverPending}}, nil
}

func (f *fakeDriverFunctions) FetchDriverDocuments(ctx context.Context, driverID string) ([]models.Document, error) {
	return []models.Document{{ID: "doc-elevated", DriverID: driverID}}, nil
}

func (f *fakeDriverFunctions) FetchDriverLogs(ctx context.Context, driverID string) ([]models.ActivityLog, error) {
	return []models.ActivityLog{{ID: "log-elevated", SubjectID: driverID}}, nil
}

func (f *fakeDriverFunctions) ApproveDriver(ctx context.Context, driverID string) error {
	f.approved = append(f.approved, driverID)
	return nil
}

func (f *fakeDriverFunctions) DeclineDriver(ctx context.Context, driverID, reason string) error {
	if f.declined == nil {
		f.declined = make(map[string]string)
	}
	f.declined[driverID] = reason
	return nil
}

func (f *fakeDriverFunctions) ToggleDriverAvailability(ctx context.Context, driverID string, available bool) error {
	if f.toggled == nil {
		f.toggled = make(map[string]bool)
	}
	f.toggled[driverID] = available
	return nil
}

func (f *fakeDriverFunctions) CreateDriverProfile(ctx context.Context, userID string) (models.Driver, error) {
	if f.createProfile != nil {
		return f.createProfile(userID)
	}
	f.createdFor = append(f.createdFor, userID)
	return models.Driver{ID: "d-new", UserID: userID, Status: models.DriverUnverified}, nil
}

func testDrivers() []models.Driver {
	return []models.Driver{
		{ID: "d1", UserID: "u2", Status: models.DriverPending, Available: false, CreatedAt: storeTestNow.Add(-48 * time.Hour)},
		{ID: "d2", UserID: "u5", Status: models.DriverVerified, Available: true, CreatedAt: storeTestNow.Add(-24 * time.Hour)},
	}
}

func testPartners() []models.User {
	return []models.User{
		{ID: "u2", Name: "Alice Wong", Role: models.RolePartner},
		{ID: "u7", Name: "New Partner", Role: models.RolePartner, CreatedAt: storeTestNow.Add(-time.Hour)},
	}
}

func newDriverFixture(t *testing.T, db *fakeDriverBackend, fns *fakeDriverFunctions) (*DriverStore, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	s := NewDriverStore(db, fns, rec, StoreConfig{})
	s.now = func() time.Time { return storeTestNow }
	if err := s.Refresh(context.Background(), testPartners()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return s, rec
}

func TestDriverListingsTaggedUnion(t *testing.T) {
	s, _ := newDriverFixture(t, &fakeDriverBackend{drivers: testDrivers()}, &fakeDriverFunctions{})

	listings := s.Listings()
	// Two profiles plus one partner (u7) without one; u2 already has d1.
	if len(listings) != 3 {
		t.Fatalf("got %d listings", len(listings))
	}

	profiles, partnerOnly := 0, 0
	for _, l := range listings {
		switch l.Kind {
		case models.ListingProfile:
			profiles++
			if l.Profile == nil || l.Partner != nil {
				t.Error("profile listing must carry exactly the profile")
			}
		case models.ListingPartnerOnly:
			partnerOnly++
			if l.Partner == nil || l.Profile != nil {
				t.Error("partner listing must carry exactly the partner")
			}
			if l.Partner.ID != "u7" {
				t.Errorf("wrong partner %s listed as profile-less", l.Partner.ID)
			}
		}
	}
	if profiles != 2 || partnerOnly != 1 {
		t.Errorf("profiles = %d, partner-only = %d", profiles, partnerOnly)
	}
}

func TestDriverListKindFilter(t *testing.T) {
	s, _ := newDriverFixture(t, &fakeDriverBackend{drivers: testDrivers()}, &fakeDriverFunctions{})

	page := s.List(listview.Query{}, DriverFilter{Kind: models.ListingPartnerOnly})
	if page.Total != 1 || page.Items[0].Partner.ID != "u7" {
		t.Errorf("kind filter returned %v", page.Items)
	}

	page = s.List(listview.Query{}, DriverFilter{Status: models.DriverVerified})
	if page.Total != 1 || page.Items[0].Profile.ID != "d2" {
		t.Errorf("status filter returned %v", page.Items)
	}
}

func TestDriverRefreshElevatesOnDenial(t *testing.T) {
	db := &fakeDriverBackend{listErr: backend.ErrPermissionDenied}
	fns := &fakeDriverFunctions{}
	s, _ := newDriverFixture(t, db, fns)

	if _, ok := s.Get("d-elevated"); !ok {
		t.Error("elevated fetch result missing from cache")
	}
}

func TestDriverApprove(t *testing.T) {
	db := &fakeDriverBackend{drivers: testDrivers()}
	s, rec := newDriverFixture(t, db, &fakeDriverFunctions{})

	outcome, err := s.Approve(context.Background(), "d1", "admin-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if outcome.Mode != backend.ModeDirect {
		t.Errorf("mode = %v", outcome.Mode)
	}
	got, _ := s.Get("d1")
	if got.Status != models.DriverVerified {
		t.Errorf("status = %s", got.Status)
	}
	if db.statusUpdates["d1"] != models.DriverVerified {
		t.Error("direct status update not issued")
	}
	entries := rec.all()
	if len(entries) != 1 || entries[0].Action != "driver.approved" {
		t.Errorf("audit entries = %v", entries)
	}
}

func TestDriverApproveElevatesOnDenial(t *testing.T) {
	db := &fakeDriverBackend{drivers: testDrivers(), statusErr: backend.ErrPermissionDenied}
	fns := &fakeDriverFunctions{}
	s, _ := newDriverFixture(t, db, fns)

	outcome, err := s.Approve(context.Background(), "d1", "admin-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if outcome.Mode != backend.ModeElevated {
		t.Errorf("mode = %v", outcome.Mode)
	}
	if len(fns.approved) != 1 || fns.approved[0] != "d1" {
		t.Errorf("elevated approvals = %v", fns.approved)
	}
}

func TestDriverDeclineCarriesReason(t *testing.T) {
	db := &fakeDriverBackend{drivers: testDrivers(), statusErr: backend.ErrPermissionDenied}
	fns := &fakeDriverFunctions{}
	s, _ := newDriverFixture(t, db, fns)

	if _, err := s.Decline(context.Background(), "d1", "expired license", "admin-1"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	got, _ := s.Get("d1")
	if got.Status != models.DriverDeclined {
		t.Errorf("status = %s", got.Status)
	}
	if fns.declined["d1"] != "expired license" {
		t.Errorf("reason = %q", fns.declined["d1"])
	}
}

func TestDriverToggleAvailabilityLeavesVerificationAlone(t *testing.T) {
	db := &fakeDriverBackend{drivers: testDrivers()}
	s, _ := newDriverFixture(t, db, &fakeDriverFunctions{})

	before, _ := s.Get("d1")
	if _, err := s.ToggleAvailability(context.Background(), "d1", "admin-1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	after, _ := s.Get("d1")
	if after.Available == before.Available {
		t.Error("availability did not flip")
	}
	if after.Status != before.Status {
		t.Errorf("verification changed from %s to %s on an availability toggle", before.Status, after.Status)
	}
	if got := db.availabilityUpdates["d1"]; got != after.Available {
		t.Errorf("backend told %v, cache holds %v", got, after.Available)
	}
}

func TestDriverDocumentsElevateOnDenial(t *testing.T) {
	db := &fakeDriverBackend{drivers: testDrivers(), documentsErr: backend.ErrPermissionDenied}
	s, _ := newDriverFixture(t, db, &fakeDriverFunctions{})

	docs, mode, err := s.Documents(context.Background(), "d1")
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	if mode != backend.ModeElevated || len(docs) != 1 || docs[0].ID != "doc-elevated" {
		t.Errorf("got %v via %v", docs, mode)
	}
}

func TestDriverLogsDirect(t *testing.T) {
	db := &fakeDriverBackend{drivers: testDrivers()}
	s, _ := newDriverFixture(t, db, &fakeDriverFunctions{})

	logs, mode, err := s.Logs(context.Background(), "d1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if mode != backend.ModeDirect || len(logs) != 1 || logs[0].SubjectID != "d1" {
		t.Errorf("got %v via %v", logs, mode)
	}
}

func TestDriverMaterializeProfile(t *testing.T) {
	fns := &fakeDriverFunctions{}
	s, rec := newDriverFixture(t, &fakeDriverBackend{drivers: testDrivers()}, fns)

	driver, err := s.MaterializeProfile(context.Background(), "u7", "admin-1")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if driver.UserID != "u7" {
		t.Errorf("driver = %+v", driver)
	}
	if _, ok := s.Get(driver.ID); !ok {
		t.Error("new profile missing from cache")
	}

	// u7 must no longer appear as a profile-less partner.
	for _, l := range s.Listings() {
		if l.Kind == models.ListingPartnerOnly && l.Partner.ID == "u7" {
			t.Error("materialized partner still listed as profile-less")
		}
	}

	entries := rec.all()
	if len(entries) != 1 || entries[0].Action != "driver.profile_created" {
		t.Errorf("audit entries = %v", entries)
	}
}

func TestDriverMaterializeProfileErrorPropagates(t *testing.T) {
	fns := &fakeDriverFunctions{createProfile: func(userID string) (models.Driver, error) {
		return models.Driver{}, errors.New("partner already has a profile")
	}}
	s, _ := newDriverFixture(t, &fakeDriverBackend{drivers: testDrivers()}, fns)

	if _, err := s.MaterializeProfile(context.Background(), "u7", "admin-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDriverMutateUnknownID(t *testing.T) {
	s, _ := newDriverFixture(t, &fakeDriverBackend{drivers: testDrivers()}, &fakeDriverFunctions{})

	if _, err := s.Approve(context.Background(), "missing", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
