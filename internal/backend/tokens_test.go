package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPlatformRefresherUpdatesStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "key-1" {
			t.Errorf("apikey header = %q", r.Header.Get("apikey"))
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["grant_type"] != "refresh_token" || body["refresh_token"] != "refresh-0" {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	store := NewTokenStore("access-0", "refresh-0")
	refresh := PlatformRefresher(srv.URL, "key-1", store)

	if err := refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if store.AccessToken() != "access-1" {
		t.Errorf("access token = %q", store.AccessToken())
	}
	if store.Expired() {
		t.Error("fresh token reported expired")
	}
}

func TestPlatformRefresherRejectionIsSessionExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid refresh token"}`))
	}))
	defer srv.Close()

	store := NewTokenStore("access-0", "refresh-0")
	refresh := PlatformRefresher(srv.URL, "key-1", store)

	err := refresh(context.Background())
	if !IsSessionExpired(err) {
		t.Errorf("err = %v, want session-expired", err)
	}
	// The old token stays in place on failure.
	if store.AccessToken() != "access-0" {
		t.Errorf("access token = %q", store.AccessToken())
	}
}

func TestPlatformRefresherNetworkFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	store := NewTokenStore("access-0", "refresh-0")
	refresh := PlatformRefresher(srv.URL, "key-1", store)

	if err := refresh(context.Background()); !IsUnavailable(err) {
		t.Errorf("err = %v, want unavailable", err)
	}
}
