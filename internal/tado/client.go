// Package tado is a client for the Tado REST API, layered on top of the
// device-grant authentication in the auth subpackage.
package tado

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/stefano-pogliani/tado-exporter/internal/tado/auth"
)

// DefaultBaseURL is the Tado REST API base.
const DefaultBaseURL = "https://my.tado.com/api/v2/"

// ErrNoHomeFound is returned when the authenticated account has no home
// attached to it.
var ErrNoHomeFound = errors.New("no home associated with the authenticated account")

// Client calls the Tado REST API with a bearer token kept fresh by the
// authenticator's token store. Meant for sequential use by one goroutine.
type Client struct {
	httpClient auth.HTTPClient
	baseURL    *url.URL
	auth       *auth.Authenticator
	logger     zerolog.Logger

	homeID int
}

// NewClient creates an API client backed by the given authenticator. An empty
// baseURL falls back to DefaultBaseURL.
func NewClient(authenticator *auth.Authenticator, baseURL string, logger zerolog.Logger) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, &auth.URLParseError{Value: baseURL, Err: err}
	}
	return &Client{
		httpClient: &http.Client{},
		baseURL:    parsed,
		auth:       authenticator,
		logger:     logger,
	}, nil
}

// Authenticate runs the device authorization grant for this client's
// identity. It must complete successfully before any resource call.
func (c *Client) Authenticate(ctx context.Context) error {
	return c.auth.Authenticate(ctx)
}

// Me fetches the account metadata for the authenticated user.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	var me MeResponse
	if err := c.get(ctx, "/api/v2/me", &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// Zones fetches the zones of the resolved home.
func (c *Client) Zones(ctx context.Context) ([]Zone, error) {
	var zones []Zone
	endpoint := fmt.Sprintf("/api/v2/homes/%d/zones", c.homeID)
	if err := c.get(ctx, endpoint, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// ZoneState fetches the state of one zone of the resolved home.
func (c *Client) ZoneState(ctx context.Context, zoneID int) (*ZoneState, error) {
	var state ZoneState
	endpoint := fmt.Sprintf("/api/v2/homes/%d/zones/%d/state", c.homeID, zoneID)
	if err := c.get(ctx, endpoint, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Weather fetches the outside weather report for the resolved home.
func (c *Client) Weather(ctx context.Context) (*Weather, error) {
	var weather Weather
	endpoint := fmt.Sprintf("homes/%d/weather/", c.homeID)
	if err := c.get(ctx, endpoint, &weather); err != nil {
		return nil, err
	}
	return &weather, nil
}

// RetrieveZones fetches every zone of the home along with its state. Failures
// are logged and degrade to an empty result instead of an error.
func (c *Client) RetrieveZones(ctx context.Context) []ZoneStateRecord {
	if err := c.resolveHome(ctx); err != nil {
		c.logger.Error().Err(err).Msg("unable to retrieve home identifier")
		return nil
	}

	zones, err := c.Zones(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("unable to retrieve home zones")
		return nil
	}

	records := make([]ZoneStateRecord, 0, len(zones))
	for _, zone := range zones {
		c.logger.Info().Str("zone", zone.Name).Msg("retrieving zone details")
		state, err := c.ZoneState(ctx, zone.ID)
		if err != nil {
			c.logger.Error().Err(err).Str("zone", zone.Name).Msg("unable to retrieve home zone state")
			return nil
		}
		records = append(records, ZoneStateRecord{Name: zone.Name, State: *state})
	}
	return records
}

// RetrieveWeather fetches the weather report for the home. Failures are
// logged and degrade to a nil result instead of an error.
func (c *Client) RetrieveWeather(ctx context.Context) *Weather {
	c.logger.Info().Msg("retrieving weather details")
	if err := c.resolveHome(ctx); err != nil {
		c.logger.Error().Err(err).Msg("unable to retrieve home identifier")
		return nil
	}

	weather, err := c.Weather(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("unable to retrieve weather info")
		return nil
	}
	return weather
}

// resolveHome looks up the home identifier once and caches it.
func (c *Client) resolveHome(ctx context.Context) error {
	if c.homeID != 0 {
		return nil
	}
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	if len(me.Homes) == 0 {
		return ErrNoHomeFound
	}
	c.homeID = me.Homes[0].ID
	return nil
}

// get issues an authenticated GET, refreshing the access token first if its
// deadline passed, and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, ref string, out any) error {
	if err := c.auth.Store().RefreshIfNeeded(ctx); err != nil {
		return err
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return &auth.URLParseError{Value: ref, Err: err}
	}
	target := c.baseURL.ResolveReference(parsed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return &auth.HTTPError{Op: "fetch " + ref, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.auth.Store().AccessToken())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &auth.HTTPError{Op: "fetch " + ref, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &auth.UnexpectedStatusError{Status: resp.StatusCode, URL: target.String()}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
