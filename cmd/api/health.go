package main

import (
	"context"
	"net/http"
	"time"

	"ride-admin/internal/response"
)

// Ping responds to a simple reachability check.
func (app *Config) Ping(w http.ResponseWriter, r *http.Request) {
	response.Success(w, "pong", nil)
}

// Liveness reports that the process is up.
func (app *Config) Liveness(w http.ResponseWriter, r *http.Request) {
	response.Success(w, "alive", map[string]string{
		"service": serviceName,
	})
}

// Readiness verifies the backing stores before reporting ready.
func (app *Config) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"postgres": "ok",
		"redis":    "ok",
	}
	ready := true

	if err := app.Backend.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		ready = false
	}
	if err := app.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		ready = false
	}

	if !ready {
		response.WriteJSON(w, http.StatusServiceUnavailable, response.Envelope{
			Error:   true,
			Message: "not ready",
			Data:    checks,
		})
		return
	}
	response.Success(w, "ready", checks)
}
