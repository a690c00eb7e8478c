package main

import (
	"context"
	"net/http"
	"strings"

	"ride-admin/internal/auth"
	"ride-admin/internal/response"
)

type contextKey string

const claimsKey contextKey = "claims"

// AuthRequired validates the console bearer token and stashes its claims
// in the request context.
func (app *Config) AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			response.Unauthorized(w, "Missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(w, "Invalid authorization header")
			return
		}

		claims, err := auth.ValidateToken(parts[1], app.JWTSecret)
		if err != nil {
			if err == auth.ErrExpiredToken {
				response.Unauthorized(w, "Token has expired")
				return
			}
			response.Unauthorized(w, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a handler behind a console role.
func (app *Config) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r.Context())
			if claims == nil || claims.Role != role {
				response.Forbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}
