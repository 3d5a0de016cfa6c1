package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRefreshMargin is how long before the server-reported expiry the
// access token is considered stale and refreshed.
const DefaultRefreshMargin = 10 * time.Second

// Store owns the current token pair and its refresh deadline.
//
// All updates funnel through SetTokens so a reader either sees the old
// pair-and-deadline or the new one, never a mix.
type Store struct {
	httpClient HTTPClient
	tokenURL   string
	clientID   string
	margin     time.Duration
	logger     zerolog.Logger
	now        func() time.Time

	mu        sync.Mutex
	tokens    TokenPair
	refreshBy time.Time
}

// NewStore creates a token store refreshing against the given token endpoint.
// A zero margin falls back to DefaultRefreshMargin.
func NewStore(httpClient HTTPClient, tokenURL, clientID string, margin time.Duration, logger zerolog.Logger) *Store {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	return &Store{
		httpClient: httpClient,
		tokenURL:   tokenURL,
		clientID:   clientID,
		margin:     margin,
		logger:     logger,
		now:        time.Now,
	}
}

// AccessToken returns the current bearer token.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.AccessToken
}

// SetTokens replaces the stored pair and recomputes the refresh deadline.
func (s *Store) SetTokens(pair TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTokensLocked(pair)
}

func (s *Store) setTokensLocked(pair TokenPair) {
	// Reduce the token validity slightly to refresh before it expires.
	validity := time.Duration(pair.ExpiresIn)*time.Second - s.margin
	s.tokens = pair
	s.refreshBy = s.now().Add(validity)
}

// RefreshIfNeeded refreshes the access token if its refresh deadline passed.
// It is a no-op while the current token is still considered valid.
func (s *Store) RefreshIfNeeded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.now().Before(s.refreshBy) {
		return nil
	}

	form := url.Values{
		"client_id":     {s.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.tokens.RefreshToken},
	}
	resp, err := postForm(ctx, s.httpClient, s.tokenURL, form, nil)
	if err != nil {
		return &HTTPError{Op: "refresh tokens", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Op: "refresh tokens", Err: fmt.Errorf("token endpoint returned status %d", resp.StatusCode)}
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return &HTTPError{Op: "refresh tokens", Err: err}
	}
	s.setTokensLocked(pair)
	s.logger.Info().Msg("API access tokens refreshed")
	return nil
}

func postForm(ctx context.Context, client HTTPClient, rawURL string, form url.Values, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for name, values := range header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	return client.Do(req)
}
