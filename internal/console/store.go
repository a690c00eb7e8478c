// Package console holds the per-screen stores behind the admin console:
// an explicit cache per entity type, pure list derivation on top of it, and
// optimistic mutation handlers that reconcile with the hosted backend
// through the permission-fallback path.
package console

import (
	"context"
	"errors"
	"sync"

	"ride-admin/internal/backend"
)

// ErrNotFound marks a mutation against an id the cache does not hold.
var ErrNotFound = errors.New("not found")

// StoreConfig tunes mutation behavior for every screen store.
type StoreConfig struct {
	// RollbackOnFailure reverts the optimistic local value when the remote
	// write hard-fails. Off by default: the screen then keeps the divergent
	// value flagged as unsynced.
	RollbackOnFailure bool
}

// Outcome tells a screen how a mutation landed so it can pick the right
// notice: nothing for persisted writes, a soft "saved locally only" banner
// for local-only ones.
type Outcome struct {
	Mode   backend.Mode `json:"mode"`
	Notice string       `json:"notice,omitempty"`
}

func outcomeFor(mode backend.Mode) Outcome {
	out := Outcome{Mode: mode}
	switch mode {
	case backend.ModeLocalOnly:
		out.Notice = "Saved locally only; this change has not reached the server"
	case backend.ModeElevated:
		out.Notice = "Saved with elevated permissions"
	}
	return out
}

// Recorder is the audit side-writer. Implementations are best-effort and
// never return an error.
type Recorder interface {
	Record(ctx context.Context, subjectID, actorID, action, details string)
}

// Snapshots caches the last good record set so reads degraded by a network
// failure can render something instead of an empty screen.
type Snapshots interface {
	Load(ctx context.Context, key string, v any) bool
	Store(ctx context.Context, key string, v any)
}

// cache is the shared record cache behind a screen store. Records carry a
// per-id unsynced (dirty) bit for local-only divergence, and refreshes are
// tagged with a generation so a superseded response is discarded instead of
// clobbering newer state.
type cache[T any] struct {
	mu    sync.RWMutex
	recs  map[string]T
	dirty map[string]bool
	gen   uint64
	mode  backend.Mode
}

func newCache[T any]() *cache[T] {
	return &cache[T]{
		recs:  make(map[string]T),
		dirty: make(map[string]bool),
		mode:  backend.ModeDirect,
	}
}

// begin bumps and returns the refresh generation.
func (c *cache[T]) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// complete installs a fetched record set if gen is still current. Records
// with a pending local-only change are kept so the poll cannot silently
// revert them; they stay flagged for reconciliation. Returns false when the
// response was superseded and discarded.
func (c *cache[T]) complete(gen uint64, recs []T, key func(T) string, mode backend.Mode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}

	fresh := make(map[string]T, len(recs))
	for _, rec := range recs {
		id := key(rec)
		if c.dirty[id] {
			if kept, ok := c.recs[id]; ok {
				fresh[id] = kept
				continue
			}
		}
		fresh[id] = rec
	}
	// Local-only records absent from the server response survive too.
	for id, dirty := range c.dirty {
		if !dirty {
			continue
		}
		if _, ok := fresh[id]; !ok {
			if kept, exists := c.recs[id]; exists {
				fresh[id] = kept
			}
		}
	}

	c.recs = fresh
	c.mode = mode
	return true
}

func (c *cache[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.recs[id]
	return rec, ok
}

func (c *cache[T]) put(id string, rec T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs[id] = rec
}

func (c *cache[T]) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.recs, id)
	delete(c.dirty, id)
}

func (c *cache[T]) setDirty(id string, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dirty {
		c.dirty[id] = true
	} else {
		delete(c.dirty, id)
	}
}

// snapshot returns a copy of the record set for derivation.
func (c *cache[T]) snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.recs))
	for _, rec := range c.recs {
		out = append(out, rec)
	}
	return out
}

// unsynced returns a copy of the dirty-id set.
func (c *cache[T]) unsynced() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(c.dirty))
	for id, d := range c.dirty {
		if d {
			out[id] = true
		}
	}
	return out
}

// lastMode reports how the last completed refresh was sourced.
func (c *cache[T]) lastMode() backend.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}
