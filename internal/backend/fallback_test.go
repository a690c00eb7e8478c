package backend

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestReadDirectSuccess(t *testing.T) {
	out, mode, err := Read(context.Background(),
		func(ctx context.Context) ([]string, error) { return []string{"a"}, nil },
		nil,
		func() []string { return []string{"placeholder"} },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode != ModeDirect || !reflect.DeepEqual(out, []string{"a"}) {
		t.Errorf("got %v via %v, want direct [a]", out, mode)
	}
}

func TestReadElevatesOnPermissionDenial(t *testing.T) {
	elevatedCalled := false
	out, mode, err := Read(context.Background(),
		func(ctx context.Context) ([]string, error) { return nil, ErrPermissionDenied },
		func(ctx context.Context) ([]string, error) {
			elevatedCalled = true
			return []string{"elevated"}, nil
		},
		func() []string { return []string{"placeholder"} },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !elevatedCalled || mode != ModeElevated || out[0] != "elevated" {
		t.Errorf("got %v via %v", out, mode)
	}
}

func TestReadPlaceholderWhenNoElevatedPath(t *testing.T) {
	out, mode, err := Read(context.Background(),
		func(ctx context.Context) ([]string, error) { return nil, ErrPermissionDenied },
		nil,
		func() []string { return []string{"placeholder"} },
	)
	if err != nil {
		t.Fatalf("permission denial must not propagate, got %v", err)
	}
	if mode != ModePlaceholder || out[0] != "placeholder" {
		t.Errorf("got %v via %v", out, mode)
	}
}

func TestReadPlaceholderWhenElevatedAlsoFails(t *testing.T) {
	out, mode, err := Read(context.Background(),
		func(ctx context.Context) ([]string, error) { return nil, ErrPermissionDenied },
		func(ctx context.Context) ([]string, error) { return nil, errors.New("function crashed") },
		func() []string { return []string{"placeholder"} },
	)
	if err != nil {
		t.Fatalf("fallback must swallow the elevated failure, got %v", err)
	}
	if mode != ModePlaceholder || out[0] != "placeholder" {
		t.Errorf("got %v via %v", out, mode)
	}
}

func TestReadPropagatesOtherErrors(t *testing.T) {
	boom := errors.New("syntax error")
	elevatedCalled := false
	_, _, err := Read(context.Background(),
		func(ctx context.Context) ([]string, error) { return nil, boom },
		func(ctx context.Context) ([]string, error) {
			elevatedCalled = true
			return nil, nil
		},
		nil,
	)
	if !errors.Is(err, boom) {
		t.Errorf("expected the original error, got %v", err)
	}
	if elevatedCalled {
		t.Error("elevated path must not run for non-permission errors")
	}
}

func TestWriteDirectSuccess(t *testing.T) {
	mode, err := Write(context.Background(),
		func(ctx context.Context) error { return nil },
		nil,
	)
	if err != nil || mode != ModeDirect {
		t.Errorf("got mode %v, err %v", mode, err)
	}
}

func TestWriteElevatesOnPermissionDenial(t *testing.T) {
	mode, err := Write(context.Background(),
		func(ctx context.Context) error { return ErrPermissionDenied },
		func(ctx context.Context) error { return nil },
	)
	if err != nil || mode != ModeElevated {
		t.Errorf("got mode %v, err %v", mode, err)
	}
}

func TestWriteLocalOnlyWhenNoElevatedPath(t *testing.T) {
	mode, err := Write(context.Background(),
		func(ctx context.Context) error { return ErrPermissionDenied },
		nil,
	)
	if err != nil {
		t.Fatalf("permission denial must not propagate, got %v", err)
	}
	if mode != ModeLocalOnly {
		t.Errorf("got mode %v, want local_only", mode)
	}
}

func TestWriteLocalOnlyWhenElevatedFails(t *testing.T) {
	mode, err := Write(context.Background(),
		func(ctx context.Context) error { return ErrPermissionDenied },
		func(ctx context.Context) error { return errors.New("function crashed") },
	)
	if err != nil {
		t.Fatalf("fallback must swallow the elevated failure, got %v", err)
	}
	if mode != ModeLocalOnly {
		t.Errorf("got mode %v, want local_only", mode)
	}
}

func TestWritePropagatesOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := Write(context.Background(),
		func(ctx context.Context) error { return boom },
		func(ctx context.Context) error { return nil },
	)
	if !errors.Is(err, boom) {
		t.Errorf("expected the original error, got %v", err)
	}
}

func TestModePersisted(t *testing.T) {
	persisted := map[Mode]bool{
		ModeDirect:      true,
		ModeElevated:    true,
		ModeLocalOnly:   false,
		ModePlaceholder: false,
		ModeCached:      false,
	}
	for mode, want := range persisted {
		if mode.Persisted() != want {
			t.Errorf("%v.Persisted() = %v, want %v", mode, !want, want)
		}
	}
}
