package report

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rubiojr/go-strawberrypi/station"
)

// Metrics exposes the latest readings as Prometheus gauges.
type Metrics struct {
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	light       prometheus.Gauge
	gas         *prometheus.GaugeVec
	alarms      prometheus.Counter
	failures    *prometheus.CounterVec
}

func newGauge(name string, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		temperature: newGauge("air_temperature", "Air Temperature (units: degrees Celsius)"),
		humidity:    newGauge("air_humidity", "Humidity (units: % of relative Humidity)"),
		light:       newGauge("light_level", "Photoresistor level (units: raw 0-255)"),
		gas: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gas_concentration",
			Help: "Gas concentration (units: ppm)",
		}, []string{"gas"}),
		alarms: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gas_alarms_total",
			Help: "Gas readings above the alarm threshold",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensor_read_failures_total",
			Help: "Failed sensor reads",
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{m.temperature, m.humidity, m.light, m.gas, m.alarms, m.failures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) ReportClimate(ctx context.Context, meas station.Measurement) error {
	m.temperature.Set(meas.Celsius())
	m.humidity.Set(meas.Percent())
	m.light.Set(float64(meas.Light))
	return nil
}

func (m *Metrics) ReportGas(ctx context.Context, g station.GasSample) error {
	m.gas.WithLabelValues("co").Set(g.CO)
	m.gas.WithLabelValues("lpg").Set(g.LPG)
	if g.Alarm {
		m.alarms.Inc()
	}
	return nil
}

func (m *Metrics) ReportFailure(ctx context.Context, f station.Failure) error {
	m.failures.WithLabelValues(string(f.Stage)).Inc()
	return nil
}
