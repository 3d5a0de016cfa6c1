package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the authenticator's notion of time so polling and expiry
// can be tested without real sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func newTestAuthenticator(t *testing.T, loginURL string) (*Authenticator, *fakeClock) {
	t.Helper()
	a, err := New(Config{
		Username: "username",
		Password: "password",
		ClientID: "client-id",
		LoginURL: loginURL,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	a.now = clock.Now
	a.sleep = clock.Sleep
	a.store.now = clock.Now
	return a, clock
}

func redirectQuery(missing ...string) url.Values {
	query := url.Values{
		"code_challenge":        {"challenge"},
		"code_challenge_method": {"S256"},
		"redirect_uri":          {"https://app.tado.com/callback"},
		"response_type":         {"code"},
		"state":                 {"state-value"},
		"tenantId":              {"tenant-value"},
	}
	for _, name := range missing {
		query.Del(name)
	}
	return query
}

func TestStartDeviceFlow(t *testing.T) {
	t.Run("parses the grant session", func(t *testing.T) {
		var form url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/oauth2/device_authorize", r.URL.Path)
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{
				"device_code": "device-123",
				"user_code": "USER-123",
				"verification_uri_complete": "https://login.tado.com/verify?code=USER-123",
				"expires_in": 300,
				"interval": 5
			}`)
		}))
		defer srv.Close()

		a, clock := newTestAuthenticator(t, srv.URL)
		session, err := a.startDeviceFlow(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "client-id", form.Get("client_id"))
		assert.Equal(t, "offline_access", form.Get("scope"))
		assert.Equal(t, "device-123", session.DeviceCode)
		assert.Equal(t, "USER-123", session.UserCode)
		assert.Equal(t, "https://login.tado.com/verify?code=USER-123", session.VerificationURIComplete)
		assert.Equal(t, int64(300), session.ExpiresIn)
		assert.Equal(t, int64(5), session.Interval)
		assert.Equal(t, clock.now, session.startedAt)
	})

	t.Run("non-2xx is an HTTP error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		a, _ := newTestAuthenticator(t, srv.URL)
		_, err := a.startDeviceFlow(context.Background())
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, "start device flow", httpErr.Op)
	})

	t.Run("malformed JSON is an HTTP error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "not json")
		}))
		defer srv.Close()

		a, _ := newTestAuthenticator(t, srv.URL)
		_, err := a.startDeviceFlow(context.Background())
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
	})
}

func TestApproveDevice(t *testing.T) {
	session := &DeviceGrantSession{UserCode: "USER-123"}

	t.Run("completes the consent exchange", func(t *testing.T) {
		var deviceForm, authorizeForm url.Values
		var authorizeCookies []*http.Cookie
		var referer string

		mux := http.NewServeMux()
		srv := httptest.NewServer(mux)
		defer srv.Close()

		mux.HandleFunc("/oauth2/device", func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			deviceForm = r.PostForm
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "session-1"})
			http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "xsrf-1"})
			w.Header().Set("Location", "/oauth2/login?"+redirectQuery().Encode())
			w.WriteHeader(http.StatusFound)
		})
		mux.HandleFunc("/oauth2/authorize", func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			authorizeForm = r.PostForm
			authorizeCookies = r.Cookies()
			referer = r.Header.Get("Referer")
			w.WriteHeader(http.StatusOK)
		})

		a, _ := newTestAuthenticator(t, srv.URL)
		require.NoError(t, a.approveDevice(context.Background(), session))

		assert.Equal(t, "client-id", deviceForm.Get("client_id"))
		assert.Equal(t, tenantID, deviceForm.Get("tenantId"))
		assert.Equal(t, "USER-123", deviceForm.Get("user_code"))
		assert.Equal(t, "USER-123", deviceForm.Get("interactive_user_code"))

		assert.Equal(t, "challenge", authorizeForm.Get("code_challenge"))
		assert.Equal(t, "S256", authorizeForm.Get("code_challenge_method"))
		assert.Equal(t, "https://app.tado.com/callback", authorizeForm.Get("redirect_uri"))
		assert.Equal(t, "code", authorizeForm.Get("response_type"))
		assert.Equal(t, "state-value", authorizeForm.Get("state"))
		assert.Equal(t, "tenant-value", authorizeForm.Get("tenantId"))
		assert.Equal(t, "client-id", authorizeForm.Get("client_id"))
		assert.Equal(t, "USER-123", authorizeForm.Get("user_code"))
		assert.Equal(t, "username", authorizeForm.Get("loginId"))
		assert.Equal(t, "password", authorizeForm.Get("password"))
		assert.Equal(t, "false", authorizeForm.Get("userVerifyingPlatformAuthenticatorAvailable"))
		for _, name := range []string{"captcha_token", "nonce", "oauth_context", "response_mode", "scope", "timezone"} {
			assert.Contains(t, authorizeForm, name)
			assert.Empty(t, authorizeForm.Get(name))
		}

		assert.Equal(t, srv.URL+"/", referer)
		require.Len(t, authorizeCookies, 2)
		assert.Equal(t, "JSESSIONID", authorizeCookies[0].Name)
		assert.Equal(t, "session-1", authorizeCookies[0].Value)
		assert.Equal(t, "XSRF-TOKEN", authorizeCookies[1].Name)
		assert.Equal(t, "xsrf-1", authorizeCookies[1].Value)
	})

	t.Run("missing Location is an unexpected status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		a, _ := newTestAuthenticator(t, srv.URL)
		err := a.approveDevice(context.Background(), session)
		var statusErr *UnexpectedStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusOK, statusErr.Status)
		assert.Equal(t, srv.URL+"/oauth2/device", statusErr.URL)
	})

	t.Run("missing state parameter", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/oauth2/login?"+redirectQuery("state").Encode())
			w.WriteHeader(http.StatusFound)
		}))
		defer srv.Close()

		a, _ := newTestAuthenticator(t, srv.URL)
		err := a.approveDevice(context.Background(), session)
		var missingErr *MissingParamError
		require.ErrorAs(t, err, &missingErr)
		assert.Equal(t, "state", missingErr.Param)
	})

	t.Run("reports the first missing parameter", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/oauth2/login")
			w.WriteHeader(http.StatusFound)
		}))
		defer srv.Close()

		a, _ := newTestAuthenticator(t, srv.URL)
		err := a.approveDevice(context.Background(), session)
		var missingErr *MissingParamError
		require.ErrorAs(t, err, &missingErr)
		assert.Equal(t, "code_challenge", missingErr.Param)
	})

	t.Run("non-2xx consent response is an HTTP error", func(t *testing.T) {
		mux := http.NewServeMux()
		srv := httptest.NewServer(mux)
		defer srv.Close()

		mux.HandleFunc("/oauth2/device", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/oauth2/login?"+redirectQuery().Encode())
			w.WriteHeader(http.StatusFound)
		})
		mux.HandleFunc("/oauth2/authorize", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		a, _ := newTestAuthenticator(t, srv.URL)
		err := a.approveDevice(context.Background(), session)
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, "complete device approval", httpErr.Op)
	})
}

func TestWaitForTokens(t *testing.T) {
	newSession := func(clock *fakeClock) *DeviceGrantSession {
		return &DeviceGrantSession{
			DeviceCode: "device-123",
			UserCode:   "USER-123",
			ExpiresIn:  300,
			Interval:   5,
			startedAt:  clock.now,
		}
	}

	t.Run("polls until tokens are issued", func(t *testing.T) {
		var calls int
		var form url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/oauth2/token", r.URL.Path)
			assert.NoError(t, r.ParseForm())
			form = r.PostForm
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error": "authorization_pending"}`)
				return
			}
			fmt.Fprint(w, `{"access_token": "A", "refresh_token": "R", "expires_in": 600}`)
		}))
		defer srv.Close()

		a, clock := newTestAuthenticator(t, srv.URL)
		require.NoError(t, a.waitForTokens(context.Background(), newSession(clock)))

		assert.Equal(t, 3, calls)
		assert.Equal(t, "client-id", form.Get("client_id"))
		assert.Equal(t, "device-123", form.Get("device_code"))
		assert.Equal(t, deviceGrantType, form.Get("grant_type"))
		// The poller honors the server-reported interval exactly.
		assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, clock.sleeps)
		assert.Equal(t, "A", a.store.AccessToken())
		assert.Equal(t, clock.now.Add(590*time.Second), a.store.refreshBy)
	})

	t.Run("non-pending 400 fails immediately", func(t *testing.T) {
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error": "access_denied"}`)
		}))
		defer srv.Close()

		a, clock := newTestAuthenticator(t, srv.URL)
		err := a.waitForTokens(context.Background(), newSession(clock))
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Contains(t, httpErr.Error(), "access_denied")
		assert.Equal(t, 1, calls)
		assert.Empty(t, clock.sleeps)
	})

	t.Run("unexpected status fails immediately", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		a, clock := newTestAuthenticator(t, srv.URL)
		err := a.waitForTokens(context.Background(), newSession(clock))
		var statusErr *UnexpectedStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
		assert.Equal(t, srv.URL+"/oauth2/token", statusErr.URL)
	})

	t.Run("times out when the grant expires", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error": "authorization_pending"}`)
		}))
		defer srv.Close()

		a, clock := newTestAuthenticator(t, srv.URL)
		session := newSession(clock)
		session.ExpiresIn = 10
		session.Interval = 4

		err := a.waitForTokens(context.Background(), session)
		require.ErrorIs(t, err, ErrTimeout)
		// Polls at t=0, 4 and 8; the next check is past the 10s expiry.
		assert.Len(t, clock.sleeps, 3)
	})
}

func TestAuthenticate(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/oauth2/device_authorize", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"device_code": "device-123",
			"user_code": "USER-123",
			"verification_uri_complete": "%s/verify?code=USER-123",
			"expires_in": 300,
			"interval": 5
		}`, srv.URL)
	})
	mux.HandleFunc("/oauth2/device", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "session-1"})
		w.Header().Set("Location", "/oauth2/login?"+redirectQuery().Encode())
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/oauth2/authorize", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		if tokenCalls < 3 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error": "authorization_pending"}`)
			return
		}
		fmt.Fprint(w, `{"access_token": "A", "refresh_token": "R", "expires_in": 600}`)
	})

	a, clock := newTestAuthenticator(t, srv.URL)
	start := clock.now
	require.NoError(t, a.Authenticate(context.Background()))

	assert.Equal(t, "A", a.store.AccessToken())
	assert.Equal(t, "R", a.store.tokens.RefreshToken)
	// Two pending polls, so at least 10s of simulated time elapsed.
	assert.GreaterOrEqual(t, clock.now.Sub(start), 10*time.Second)
	assert.Equal(t, clock.now.Add(590*time.Second), a.store.refreshBy)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "missing required parameter state", (&MissingParamError{Param: "state"}).Error())
	assert.Equal(t, "unexpected auth API status 418 for URL https://login.tado.com/oauth2/device",
		(&UnexpectedStatusError{Status: 418, URL: "https://login.tado.com/oauth2/device"}).Error())
	assert.Equal(t, "header Location could not be decoded as text", (&HeaderError{Name: "Location"}).Error())

	wrapped := &HTTPError{Op: "poll for tokens", Err: errors.New("boom")}
	assert.Equal(t, "poll for tokens: boom", wrapped.Error())
	assert.ErrorIs(t, fmt.Errorf("outer: %w", wrapped), wrapped)
}
