// Package prefs persists per-admin console flags: plain string values with
// no schema, matching what the console actually stores (prompt dismissals).
package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Known flags.
const (
	FlagInstallPromptDismissed = "install_prompt_dismissed"
	FlagUpdatePromptShown      = "update_prompt_shown"
)

// KnownFlag reports whether flag is one the console stores. Unknown names
// are rejected before touching Redis.
func KnownFlag(flag string) bool {
	switch flag {
	case FlagInstallPromptDismissed, FlagUpdatePromptShown:
		return true
	}
	return false
}

// Store keeps console flags in Redis.
type Store struct {
	rdb *redis.Client
}

// New builds a flag store over rdb.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func key(userID, flag string) string {
	return fmt.Sprintf("prefs:%s:%s", userID, flag)
}

// Get returns the flag value, or "" when unset.
func (s *Store) Get(ctx context.Context, userID, flag string) (string, error) {
	val, err := s.rdb.Get(ctx, key(userID, flag)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores the flag value. Flags never expire.
func (s *Store) Set(ctx context.Context, userID, flag, value string) error {
	return s.rdb.Set(ctx, key(userID, flag), value, 0).Err()
}
