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

const usersSnapshotKey = "snapshot:users"

// UserBackend is the direct-table surface the users screen needs.
type UserBackend interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, u models.User) error
}

// UserFunctions are the privileged operations behind the users screen.
type UserFunctions interface {
	DeleteUser(ctx context.Context, userID string) error
}

// UserPatch is a partial user edit; nil fields are untouched.
type UserPatch struct {
	Name      *string
	Email     *string
	Phone     *string
	Role      *models.Role
	Suspended *bool
}

// UserFilter holds the categorical predicates of the users screen.
type UserFilter struct {
	Role      models.Role
	Suspended *bool
}

// UserStore is the users screen's store.
type UserStore struct {
	cache     *cache[models.User]
	backend   UserBackend
	functions UserFunctions
	recorder  Recorder
	snapshots Snapshots
	rollback  bool

	now  func() time.Time
	view listview.View[models.User]
}

// NewUserStore builds a users store. recorder and snapshots may be nil.
func NewUserStore(ub UserBackend, fns UserFunctions, recorder Recorder, snapshots Snapshots, cfg StoreConfig) *UserStore {
	return &UserStore{
		cache:     newCache[models.User](),
		backend:   ub,
		functions: fns,
		recorder:  recorder,
		snapshots: snapshots,
		rollback:  cfg.RollbackOnFailure,
		now:       time.Now,
		view:      userView(),
	}
}

func userView() listview.View[models.User] {
	return listview.View[models.User]{
		SearchText: func(u models.User) []string {
			fields := []string{u.Name, u.Email}
			if u.Phone != nil {
				fields = append(fields, *u.Phone)
			}
			return fields
		},
		SortFields: map[string]listview.Comparator[models.User]{
			"name":       func(a, b models.User) int { return listview.CompareStrings(a.Name, b.Name) },
			"email":      func(a, b models.User) int { return listview.CompareStrings(a.Email, b.Email) },
			"role":       func(a, b models.User) int { return listview.CompareStrings(string(a.Role), string(b.Role)) },
			"created_at": func(a, b models.User) int { return listview.CompareTimes(a.CreatedAt, b.CreatedAt) },
		},
		DateLike: map[string]bool{"created_at": true},
		Date:     func(u models.User) (time.Time, bool) { return u.CreatedAt, !u.CreatedAt.IsZero() },
	}
}

func userKey(u models.User) string { return u.ID }

// Refresh re-fetches the user list with the same supersession and cached
// snapshot behavior as the bookings screen.
func (s *UserStore) Refresh(ctx context.Context) error {
	gen := s.cache.begin()

	users, mode, err := backend.Read(ctx, s.backend.ListUsers, nil, func() []models.User {
		return nil
	})
	if err != nil {
		if backend.IsUnavailable(err) && s.snapshots != nil {
			var cached []models.User
			if s.snapshots.Load(ctx, usersSnapshotKey, &cached) {
				logger.Warn("User fetch unavailable, serving cached snapshot", "error", err)
				s.cache.complete(gen, cached, userKey, backend.ModeCached)
				return nil
			}
		}
		return err
	}

	if !s.cache.complete(gen, users, userKey, mode) {
		logger.Debug("Discarding superseded user refresh", "generation", gen)
		return nil
	}

	if mode == backend.ModeDirect && s.snapshots != nil {
		s.snapshots.Store(ctx, usersSnapshotKey, users)
	}
	return nil
}

// List derives the screen's projection.
func (s *UserStore) List(q listview.Query, f UserFilter) listview.Page[models.User] {
	var preds []func(models.User) bool
	if f.Role != "" {
		preds = append(preds, func(u models.User) bool { return u.Role == f.Role })
	}
	if f.Suspended != nil {
		want := *f.Suspended
		preds = append(preds, func(u models.User) bool { return u.Suspended == want })
	}
	return s.view.Derive(s.cache.snapshot(), q, s.now(), preds...)
}

// Get returns one cached user.
func (s *UserStore) Get(id string) (models.User, bool) {
	return s.cache.get(id)
}

// Partners returns the cached partner-role users, for the drivers screen's
// profile-less listing.
func (s *UserStore) Partners() []models.User {
	var partners []models.User
	for _, u := range s.cache.snapshot() {
		if u.Role == models.RolePartner {
			partners = append(partners, u)
		}
	}
	return partners
}

// Unsynced returns the ids whose local value has not reached the server.
func (s *UserStore) Unsynced() map[string]bool {
	return s.cache.unsynced()
}

// Degraded reports how the last refresh was sourced.
func (s *UserStore) Degraded() backend.Mode {
	return s.cache.lastMode()
}

// DefaultDesc reports the default direction when sorting by field.
func (s *UserStore) DefaultDesc(field string) bool {
	return s.view.DefaultDesc(field)
}

// Update applies an admin edit optimistically and reconciles remotely.
func (s *UserStore) Update(ctx context.Context, id string, patch UserPatch, actorID string) (Outcome, error) {
	prev, ok := s.cache.get(id)
	if !ok {
		return Outcome{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	next := prev
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Email != nil {
		next.Email = *patch.Email
	}
	if patch.Phone != nil {
		next.Phone = patch.Phone
	}
	if patch.Role != nil {
		next.Role = *patch.Role
	}
	if patch.Suspended != nil {
		next.Suspended = *patch.Suspended
	}
	next.UpdatedAt = s.now()
	s.cache.put(id, next)

	mode, err := backend.Write(ctx, func(ctx context.Context) error {
		return s.backend.UpdateUser(ctx, next)
	}, nil)
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
		details := fmt.Sprintf("role: %s -> %s, suspended: %t -> %t", prev.Role, next.Role, prev.Suspended, next.Suspended)
		s.recorder.Record(ctx, id, actorID, "user.updated", details)
	}
	return outcomeFor(mode), nil
}

// DeleteEverywhere removes a user through the privileged delete-user
// function, which cascades remote-side. There is no direct-table path for
// this operation, so failures propagate as hard errors.
func (s *UserStore) DeleteEverywhere(ctx context.Context, id, actorID string) error {
	if _, ok := s.cache.get(id); !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	if err := s.functions.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.cache.remove(id)
	if s.recorder != nil {
		s.recorder.Record(ctx, id, actorID, "user.deleted", "removed everywhere (cascading)")
	}
	return nil
}
