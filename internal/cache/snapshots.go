// Package cache stores the last good record set per screen so a network
// failure degrades to stale data instead of an empty screen.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ride-admin/internal/logger"
)

// SnapshotStore keeps JSON snapshots in Redis with a TTL.
type SnapshotStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotStore builds a snapshot store. ttl bounds how stale a served
// snapshot can be.
func NewSnapshotStore(rdb *redis.Client, ttl time.Duration) *SnapshotStore {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &SnapshotStore{rdb: rdb, ttl: ttl}
}

// Load decodes the snapshot under key into v. Returns false when absent,
// expired or unreadable.
func (s *SnapshotStore) Load(ctx context.Context, key string, v any) bool {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		logger.Warn("Snapshot read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		logger.Warn("Snapshot decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// Store writes v under key, best-effort.
func (s *SnapshotStore) Store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Warn("Snapshot encode failed", "key", key, "error", err)
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		logger.Warn("Snapshot write failed", "key", key, "error", err)
	}
}
