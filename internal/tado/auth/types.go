package auth

import (
	"net/http"
	"time"
)

// HTTPClient is an interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DeviceGrantSession describes a device authorization grant started with the
// provider, valid until ExpiresIn elapses.
type DeviceGrantSession struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval"`

	startedAt time.Time
}

// TokenPair is the access/refresh token pair issued by the token endpoint.
// Pairs are always replaced as a whole, never partially mutated.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type tokenErrorResponse struct {
	Error string `json:"error"`
}
