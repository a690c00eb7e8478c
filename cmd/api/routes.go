package main

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ride-admin/internal/middleware"
)

func (app *Config) routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Use(middleware.Recovery)
	mux.Use(middleware.Tracing)
	mux.Use(middleware.Logger)
	mux.Use(middleware.Metrics(serviceName))

	lmt := tollbooth.NewLimiter(20, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})
	lmt.SetIPLookups([]string{"X-Forwarded-For", "RemoteAddr", "X-Real-IP"})
	mux.Use(func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lmt, next)
	})

	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/ping", app.Ping)
	mux.Get("/health/live", app.Liveness)
	mux.Get("/health/ready", app.Readiness)

	mux.Group(func(r chi.Router) {
		r.Use(app.AuthRequired)

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", app.ListBookings)
			r.Post("/refresh", app.RefreshBookings)
			r.Get("/{id}", app.GetBooking)
			r.Put("/{id}/status", app.UpdateBookingStatus)
			r.Put("/{id}/notes", app.EditBookingNotes)
			r.Put("/{id}/priority", app.SetBookingPriority)
			r.Put("/{id}/fees", app.EditBookingFees)
			r.Post("/{id}/reminder", app.SendBookingReminder)
			r.Put("/{id}/driver", app.AssignBookingDriver)
			r.Post("/{id}/duplicate", app.DuplicateBooking)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", app.ListUsers)
			r.Post("/refresh", app.RefreshUsers)
			r.Get("/{id}", app.GetUser)
			r.Put("/{id}", app.UpdateUser)
			r.With(app.RequireRole("admin")).Delete("/{id}", app.DeleteUser)
		})

		r.Route("/drivers", func(r chi.Router) {
			r.Get("/", app.ListDrivers)
			r.Post("/refresh", app.RefreshDrivers)
			r.With(app.RequireRole("admin")).Put("/{id}/approve", app.ApproveDriver)
			r.With(app.RequireRole("admin")).Put("/{id}/decline", app.DeclineDriver)
			r.Put("/{id}/availability", app.ToggleDriverAvailability)
			r.Get("/{id}/documents", app.DriverDocuments)
			r.Get("/{id}/logs", app.DriverLogs)
			r.Post("/profiles", app.CreateDriverProfile)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/logins", app.LoginStats)
			r.Get("/trips", app.TripStats)
			r.Get("/drivers", app.DriverStats)
		})

		r.Get("/payments", app.ListPayments)
		r.Get("/system/health", app.SystemHealth)
		r.Post("/debug/pricing-sim", app.SimulatePricing)

		r.Route("/prefs", func(r chi.Router) {
			r.Get("/{flag}", app.GetPref)
			r.Put("/{flag}", app.SetPref)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/status", app.SessionStatus)
			r.Post("/refresh", app.RefreshSession)
		})
	})

	return mux
}
