// Package report delivers station readings to their consumers: the
// display server socket, a MySQL database, an MQTT broker and Prometheus.
package report

import (
	"context"
	"errors"
	"math"

	"github.com/rubiojr/go-strawberrypi/station"
)

// Multi fans every report out to all reporters. A failing reporter does
// not stop the others; the errors are joined.
type Multi []station.Reporter

func (m Multi) ReportClimate(ctx context.Context, meas station.Measurement) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.ReportClimate(ctx, meas))
	}
	return errors.Join(errs...)
}

func (m Multi) ReportGas(ctx context.Context, g station.GasSample) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.ReportGas(ctx, g))
	}
	return errors.Join(errs...)
}

func (m Multi) ReportFailure(ctx context.Context, f station.Failure) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.ReportFailure(ctx, f))
	}
	return errors.Join(errs...)
}

// round rounds v to the given number of decimals, matching the precision
// the readings are displayed with.
func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
