package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// TokenStore holds the current platform session tokens. All console calls
// to the hosted platform attach the access token from here.
type TokenStore struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiry       time.Time
}

// NewTokenStore seeds a store with an initial token pair.
func NewTokenStore(accessToken, refreshToken string) *TokenStore {
	return &TokenStore{
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

// AccessToken returns the current access token.
func (s *TokenStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// Expired reports whether the access token is past (or near) its expiry.
func (s *TokenStore) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.expiry.IsZero() && time.Now().After(s.expiry)
}

// update replaces the token pair. A 60s margin is shaved off the expiry so
// refresh happens before the platform starts rejecting calls.
func (s *TokenStore) update(accessToken, refreshToken string, expiresIn int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	if refreshToken != "" {
		s.refreshToken = refreshToken
	}
	if expiresIn > 0 {
		s.expiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)
	}
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// PlatformRefresher returns a RefreshFunc that exchanges the stored refresh
// token at the platform's token endpoint and updates store on success. Wire
// it through a Governor; never call it directly from request paths.
func PlatformRefresher(tokenURL, apiKey string, store *TokenStore) RefreshFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context) error {
		store.mu.Lock()
		refreshToken := store.refreshToken
		store.mu.Unlock()

		payload, err := json.Marshal(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		})
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return fmt.Errorf("%w: refresh rejected (%d): %s", ErrSessionExpired, resp.StatusCode, string(body))
			}
			return fmt.Errorf("token endpoint error (%d): %s", resp.StatusCode, string(body))
		}

		var result refreshResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("failed to parse token response: %w", err)
		}

		store.update(result.AccessToken, result.RefreshToken, result.ExpiresIn)
		return nil
	}
}
