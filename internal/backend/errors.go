package backend

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorClass buckets remote failures into the console's handling paths.
type ErrorClass int

const (
	// ClassNone means no error.
	ClassNone ErrorClass = iota
	// ClassPermissionDenied is a row-level-security or privilege rejection.
	// Handled by automatic fallback, never surfaced as a hard failure.
	ClassPermissionDenied
	// ClassSessionExpired means the auth token was rejected and a refresh
	// should be attempted through the governor.
	ClassSessionExpired
	// ClassUnavailable covers timeouts and network failures. Read paths may
	// substitute cached data instead of failing the screen.
	ClassUnavailable
	// ClassOther is everything else; propagated to the caller.
	ClassOther
)

// Sentinel errors for non-Postgres callers (the functions client wraps HTTP
// statuses with these so classification stays in one place).
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrSessionExpired   = errors.New("session expired")
	ErrUnavailable      = errors.New("backend unavailable")
)

// Postgres SQLSTATE codes of interest.
const (
	codeInsufficientPrivilege = "42501"
	codeInvalidAuthorization  = "28000"
	codeInvalidPassword       = "28P01"
)

// Classify buckets err into an ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}

	if errors.Is(err, ErrPermissionDenied) {
		return ClassPermissionDenied
	}
	if errors.Is(err, ErrSessionExpired) {
		return ClassSessionExpired
	}
	if errors.Is(err, ErrUnavailable) {
		return ClassUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeInsufficientPrivilege:
			return ClassPermissionDenied
		case codeInvalidAuthorization, codeInvalidPassword:
			return ClassSessionExpired
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "row-level security"):
		return ClassPermissionDenied
	case strings.Contains(msg, "jwt expired"),
		strings.Contains(msg, "token expired"),
		strings.Contains(msg, "invalid token"):
		return ClassSessionExpired
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassUnavailable
	}

	return ClassOther
}

// IsPermissionDenied reports whether err is a permission rejection.
func IsPermissionDenied(err error) bool {
	return Classify(err) == ClassPermissionDenied
}

// IsSessionExpired reports whether err indicates an expired session token.
func IsSessionExpired(err error) bool {
	return Classify(err) == ClassSessionExpired
}

// IsUnavailable reports whether err is a timeout or network failure.
func IsUnavailable(err error) bool {
	return Classify(err) == ClassUnavailable
}
