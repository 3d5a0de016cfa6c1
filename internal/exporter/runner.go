// Package exporter turns Tado zone and weather data into Prometheus metrics.
package exporter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stefano-pogliani/tado-exporter/internal/tado"
)

// Source provides the zone and weather data a scrape cycle needs.
type Source interface {
	RetrieveZones(ctx context.Context) []tado.ZoneStateRecord
	RetrieveWeather(ctx context.Context) *tado.Weather
}

// Runner periodically collects data from a Source and updates the metrics.
type Runner struct {
	source   Source
	metrics  *Metrics
	interval time.Duration
	logger   zerolog.Logger
}

// NewRunner creates a scrape loop collecting every interval.
func NewRunner(source Source, metrics *Metrics, interval time.Duration, logger zerolog.Logger) *Runner {
	return &Runner{
		source:   source,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
	}
}

// Run collects once immediately, then on every tick until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.Collect(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Collect(ctx)
		case <-ctx.Done():
			r.logger.Info().Msg("Scrape loop stopped")
			return
		}
	}
}

// Collect runs a single scrape cycle.
func (r *Runner) Collect(ctx context.Context) {
	start := time.Now()
	zones := r.source.RetrieveZones(ctx)
	weather := r.source.RetrieveWeather(ctx)
	r.metrics.Update(zones, weather)
	r.logger.Info().
		Int("zones", len(zones)).
		Dur("duration", time.Since(start)).
		Msg("Finished scrape cycle")
}
