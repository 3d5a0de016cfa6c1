// Package app wires configuration into the exporter's components.
package app

import (
	"github.com/rs/zerolog"

	"github.com/stefano-pogliani/tado-exporter/internal/config"
	"github.com/stefano-pogliani/tado-exporter/internal/exporter"
	"github.com/stefano-pogliani/tado-exporter/internal/server"
	"github.com/stefano-pogliani/tado-exporter/internal/tado"
	"github.com/stefano-pogliani/tado-exporter/internal/tado/auth"
)

// App bundles the running pieces of the exporter.
type App struct {
	Client *tado.Client
	Runner *exporter.Runner
	Server *server.Server
}

// New builds the exporter from its configuration.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	authenticator, err := auth.New(auth.Config{
		Username:      cfg.Username,
		Password:      cfg.Password,
		ClientID:      cfg.ClientID,
		LoginURL:      cfg.AuthURL,
		RefreshMargin: cfg.RefreshMargin,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	client, err := tado.NewClient(authenticator, cfg.APIURL, log)
	if err != nil {
		return nil, err
	}

	metrics := exporter.NewMetrics()
	return &App{
		Client: client,
		Runner: exporter.NewRunner(client, metrics, cfg.ScrapeInterval, log),
		Server: server.New(log, metrics.Handler()),
	}, nil
}
