package exporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stefano-pogliani/tado-exporter/internal/tado"
)

// Metrics holds the exporter gauges on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	zoneTemperature       *prometheus.GaugeVec
	zoneTargetTemperature *prometheus.GaugeVec
	zoneHumidity          *prometheus.GaugeVec
	zoneHeatingPower      *prometheus.GaugeVec
	zoneOpenWindow        *prometheus.GaugeVec
	outsideTemperature    *prometheus.GaugeVec
	solarIntensity        prometheus.Gauge
}

// NewMetrics creates and registers the exporter gauges.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		zoneTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tado_sensor_temperature_value",
			Help: "Inside temperature measured in a zone.",
		}, []string{"zone", "unit"}),
		zoneTargetTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tado_setting_temperature_value",
			Help: "Target temperature configured for a zone.",
		}, []string{"zone", "unit"}),
		zoneHumidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tado_sensor_humidity_percentage",
			Help: "Relative humidity measured in a zone.",
		}, []string{"zone"}),
		zoneHeatingPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tado_activity_heating_power_percentage",
			Help: "Heating power requested by a zone.",
		}, []string{"zone"}),
		zoneOpenWindow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tado_sensor_open_window",
			Help: "Whether an open window is detected in a zone.",
		}, []string{"zone"}),
		outsideTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tado_weather_outside_temperature_value",
			Help: "Outside temperature reported for the home.",
		}, []string{"unit"}),
		solarIntensity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tado_weather_solar_intensity_percentage",
			Help: "Solar intensity reported for the home.",
		}),
	}
	m.registry.MustRegister(
		m.zoneTemperature,
		m.zoneTargetTemperature,
		m.zoneHumidity,
		m.zoneHeatingPower,
		m.zoneOpenWindow,
		m.outsideTemperature,
		m.solarIntensity,
	)
	return m
}

// Handler returns an HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Update replaces the zone series with the given records and refreshes the
// weather gauges. Zones that disappeared since the last cycle drop out.
func (m *Metrics) Update(zones []tado.ZoneStateRecord, weather *tado.Weather) {
	m.zoneTemperature.Reset()
	m.zoneTargetTemperature.Reset()
	m.zoneHumidity.Reset()
	m.zoneHeatingPower.Reset()
	m.zoneOpenWindow.Reset()

	for _, zone := range zones {
		state := zone.State
		if inside := state.SensorDataPoints.InsideTemperature; inside != nil {
			m.zoneTemperature.WithLabelValues(zone.Name, "celsius").Set(inside.Celsius)
			m.zoneTemperature.WithLabelValues(zone.Name, "fahrenheit").Set(inside.Fahrenheit)
		}
		if target := state.Setting.Temperature; target != nil {
			m.zoneTargetTemperature.WithLabelValues(zone.Name, "celsius").Set(target.Celsius)
			m.zoneTargetTemperature.WithLabelValues(zone.Name, "fahrenheit").Set(target.Fahrenheit)
		}
		if humidity := state.SensorDataPoints.Humidity; humidity != nil {
			m.zoneHumidity.WithLabelValues(zone.Name).Set(humidity.Percentage)
		}
		if heating := state.ActivityDataPoints.HeatingPower; heating != nil {
			m.zoneHeatingPower.WithLabelValues(zone.Name).Set(heating.Percentage)
		}
		openWindow := 0.0
		if state.OpenWindow != nil {
			openWindow = 1.0
		}
		m.zoneOpenWindow.WithLabelValues(zone.Name).Set(openWindow)
	}

	if weather != nil {
		m.outsideTemperature.WithLabelValues("celsius").Set(weather.OutsideTemperature.Celsius)
		m.outsideTemperature.WithLabelValues("fahrenheit").Set(weather.OutsideTemperature.Fahrenheit)
		m.solarIntensity.Set(weather.SolarIntensity.Percentage)
	}
}
