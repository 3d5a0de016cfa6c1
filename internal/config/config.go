// Package config loads exporter configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the exporter configuration. The three identity values are the
// only required settings.
type Config struct {
	Username string `envconfig:"TADO_USERNAME" required:"true"`
	Password string `envconfig:"TADO_PASSWORD" required:"true"`
	ClientID string `envconfig:"TADO_CLIENT_ID" required:"true"`

	AuthURL string `envconfig:"TADO_AUTH_URL" default:"https://login.tado.com"`
	APIURL  string `envconfig:"TADO_API_URL" default:"https://my.tado.com/api/v2/"`

	ListenAddr     string        `envconfig:"LISTEN_ADDR" default:":9898"`
	ScrapeInterval time.Duration `envconfig:"SCRAPE_INTERVAL" default:"30s"`
	RefreshMargin  time.Duration `envconfig:"REFRESH_MARGIN" default:"10s"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
