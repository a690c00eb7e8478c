package backend

import (
	"context"

	"ride-admin/internal/logger"
)

// Mode reports which path produced a result, so screens can surface a
// non-blocking "limited" notice for anything past Direct.
type Mode string

const (
	// ModeDirect means the plain table operation succeeded.
	ModeDirect Mode = "direct"
	// ModeElevated means the operation went through a privileged function
	// after the direct path was denied. The result is persisted.
	ModeElevated Mode = "elevated"
	// ModeLocalOnly means the write was applied to the local cache only.
	ModeLocalOnly Mode = "local_only"
	// ModePlaceholder means synthetic data was substituted for a denied read.
	ModePlaceholder Mode = "placeholder"
	// ModeCached means a stored snapshot was substituted for an unavailable
	// read.
	ModeCached Mode = "cached"
)

// Persisted reports whether the remote store holds the result.
func (m Mode) Persisted() bool {
	return m == ModeDirect || m == ModeElevated
}

// Read issues the direct table read first. On a permission denial it
// re-issues through elevated when one exists, else substitutes placeholder.
// A permission error never reaches the caller; any other error class does.
func Read[T any](ctx context.Context, direct func(context.Context) (T, error), elevated func(context.Context) (T, error), placeholder func() T) (T, Mode, error) {
	out, err := direct(ctx)
	if err == nil {
		return out, ModeDirect, nil
	}
	if !IsPermissionDenied(err) {
		var zero T
		return zero, ModeDirect, err
	}

	logger.Debug("Direct read denied, falling back", "error", err)

	if elevated != nil {
		out, err = elevated(ctx)
		if err == nil {
			return out, ModeElevated, nil
		}
		logger.Warn("Elevated read failed, substituting placeholder data", "error", err)
	}

	if placeholder != nil {
		return placeholder(), ModePlaceholder, nil
	}
	var zero T
	return zero, ModePlaceholder, nil
}

// Write issues the direct table write first. On a permission denial it
// re-issues through elevated when one exists; with no elevated path, or an
// elevated failure, it reports ModeLocalOnly so the caller keeps its
// optimistic state and shows a "saved locally only" notice. As with Read,
// a permission error never propagates; other error classes do.
func Write(ctx context.Context, direct func(context.Context) error, elevated func(context.Context) error) (Mode, error) {
	err := direct(ctx)
	if err == nil {
		return ModeDirect, nil
	}
	if !IsPermissionDenied(err) {
		return ModeDirect, err
	}

	logger.Debug("Direct write denied, falling back", "error", err)

	if elevated != nil {
		if err = elevated(ctx); err == nil {
			return ModeElevated, nil
		}
		logger.Warn("Elevated write failed, keeping change local", "error", err)
	}

	return ModeLocalOnly, nil
}
