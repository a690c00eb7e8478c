package middleware

import (
	"net/http"

	"ride-admin/internal/telemetry"
)

// Tracing opens a server span per request and propagates it on the request
// context so downstream logs carry trace identifiers. Probe and metrics
// paths are not traced.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipMetrics(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx, span := telemetry.StartSpan(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
