package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/stefano-pogliani/tado-exporter/internal/app"
	"github.com/stefano-pogliani/tado-exporter/internal/config"
	"github.com/stefano-pogliani/tado-exporter/internal/logger"
)

func main() {
	listen := flag.String("listen", "", "Address to serve metrics on, overrides LISTEN_ADDR")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}

	exporter, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build exporter")
	}

	ctx := context.Background()
	if err := exporter.Client.Authenticate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to authenticate with the Tado API")
	}

	go exporter.Runner.Run(ctx)

	log.Info().Str("listen_addr", cfg.ListenAddr).Msg("Starting exporter")
	log.Fatal().Err(http.ListenAndServe(cfg.ListenAddr, exporter.Server)).Msg("Exporter server failed")
}
