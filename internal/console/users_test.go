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

type fakeUserBackend struct {
	users []models.User

	listErr   error
	updateErr error

	updated []models.User
}

func (f *fakeUserBackend) ListUsers(ctx context.Context) ([]models.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.User(nil), f.users...), nil
}

func (f *fakeUserBackend) UpdateUser(ctx context.Context, u models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, u)
	return nil
}

type fakeUserFunctions struct {
	deleteErr error
	deleted   []string
}

func (f *fakeUserFunctions) DeleteUser(ctx context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, userID)
	return nil
}

func testUsers() []models.User {
	return []models.User{
		{ID: "u1", Name: "John Smith", Email: "john@example.com", Role: models.RoleCustomer, CreatedAt: storeTestNow.Add(-72 * time.Hour)},
		{ID: "u2", Name: "Alice Wong", Email: "alice@example.com", Role: models.RolePartner, CreatedAt: storeTestNow.Add(-48 * time.Hour)},
		{ID: "u3", Name: "Pat Admin", Email: "pat@example.com", Role: models.RoleAdmin, Suspended: true, CreatedAt: storeTestNow.Add(-24 * time.Hour)},
	}
}

func newUserFixture(t *testing.T, ub *fakeUserBackend, fns *fakeUserFunctions) (*UserStore, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	s := NewUserStore(ub, fns, rec, nil, StoreConfig{})
	s.now = func() time.Time { return storeTestNow }
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return s, rec
}

func TestUserListFilterAndSearch(t *testing.T) {
	s, _ := newUserFixture(t, &fakeUserBackend{users: testUsers()}, &fakeUserFunctions{})

	page := s.List(listview.Query{Search: "alice"}, UserFilter{})
	if page.Total != 1 || page.Items[0].ID != "u2" {
		t.Errorf("search returned %v", page.Items)
	}

	suspended := true
	page = s.List(listview.Query{}, UserFilter{Suspended: &suspended})
	if page.Total != 1 || page.Items[0].ID != "u3" {
		t.Errorf("suspended filter returned %v", page.Items)
	}

	page = s.List(listview.Query{Sort: "created_at", Desc: true}, UserFilter{})
	if page.Items[0].ID != "u3" {
		t.Errorf("newest-first sort returned %v", page.Items)
	}
}

func TestUserUpdateAppliesPatch(t *testing.T) {
	ub := &fakeUserBackend{users: testUsers()}
	s, rec := newUserFixture(t, ub, &fakeUserFunctions{})

	name := "John Q. Smith"
	role := models.RoleSupport
	suspended := true
	outcome, err := s.Update(context.Background(), "u1", UserPatch{Name: &name, Role: &role, Suspended: &suspended}, "admin-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if outcome.Mode != backend.ModeDirect {
		t.Errorf("mode = %v", outcome.Mode)
	}

	got, _ := s.Get("u1")
	if got.Name != name || got.Role != role || !got.Suspended {
		t.Errorf("patch not applied: %+v", got)
	}
	// Untouched fields survive.
	if got.Email != "john@example.com" {
		t.Errorf("email changed to %q", got.Email)
	}

	entries := rec.all()
	if len(entries) != 1 || entries[0].Details != "role: customer -> support, suspended: false -> true" {
		t.Errorf("audit entries = %v", entries)
	}
}

func TestUserUpdateLocalOnlyOnDenial(t *testing.T) {
	ub := &fakeUserBackend{users: testUsers(), updateErr: backend.ErrPermissionDenied}
	s, rec := newUserFixture(t, ub, &fakeUserFunctions{})

	name := "Renamed"
	outcome, err := s.Update(context.Background(), "u1", UserPatch{Name: &name}, "admin-1")
	if err != nil {
		t.Fatalf("denial must not surface: %v", err)
	}
	if outcome.Mode != backend.ModeLocalOnly {
		t.Errorf("mode = %v", outcome.Mode)
	}
	if !s.Unsynced()["u1"] {
		t.Error("record not flagged unsynced")
	}
	if len(rec.all()) != 0 {
		t.Error("local-only update must not be audited")
	}
}

func TestUserDeleteEverywhere(t *testing.T) {
	fns := &fakeUserFunctions{}
	s, rec := newUserFixture(t, &fakeUserBackend{users: testUsers()}, fns)

	if err := s.DeleteEverywhere(context.Background(), "u1", "admin-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(fns.deleted) != 1 || fns.deleted[0] != "u1" {
		t.Errorf("privileged delete calls = %v", fns.deleted)
	}
	if _, ok := s.Get("u1"); ok {
		t.Error("deleted user still cached")
	}
	entries := rec.all()
	if len(entries) != 1 || entries[0].Action != "user.deleted" {
		t.Errorf("audit entries = %v", entries)
	}
}

func TestUserDeleteEverywhereErrorsPropagate(t *testing.T) {
	// There is no fallback for cascading deletion; the caller must see the
	// failure, and the cache must keep the user.
	fns := &fakeUserFunctions{deleteErr: backend.ErrPermissionDenied}
	s, _ := newUserFixture(t, &fakeUserBackend{users: testUsers()}, fns)

	if err := s.DeleteEverywhere(context.Background(), "u1", "admin-1"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := s.Get("u1"); !ok {
		t.Error("user evicted despite failed delete")
	}
}

func TestUserPartners(t *testing.T) {
	s, _ := newUserFixture(t, &fakeUserBackend{users: testUsers()}, &fakeUserFunctions{})

	partners := s.Partners()
	if len(partners) != 1 || partners[0].ID != "u2" {
		t.Errorf("partners = %v", partners)
	}
}

func TestUserUpdateUnknownID(t *testing.T) {
	s, _ := newUserFixture(t, &fakeUserBackend{users: testUsers()}, &fakeUserFunctions{})

	name := "x"
	if _, err := s.Update(context.Background(), "missing", UserPatch{Name: &name}, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
