// Driver to read the MQ-5 gas sensor via an ADS7830 ADC
//
// The sensor resistance is derived from the ADC voltage, normalized by the
// resistance measured in clean air (R0) and mapped to CO and LPG
// concentrations through piecewise-linear tables.
package mq5

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/rubiojr/go-strawberrypi/ads7830"
)

const (
	// Rs/R0 in clean air, from the sensitivity graph
	cleanAirRatio = 6.5

	supplyVoltage = 5.0
)

// Sampler returns raw samples of an ADC channel.
type Sampler interface {
	Sample(channel int) (int, error)
}

// Reading is a gas concentration pair in parts per million.
type Reading struct {
	CO  float64
	LPG float64
}

// Exceeds reports whether either gas is above limit ppm.
func (r Reading) Exceeds(limit float64) bool {
	return r.CO > limit || r.LPG > limit
}

type Opts struct {
	Channel int           // ADC channel the sensor is wired to
	Warmup  time.Duration // heater warm-up before calibrating
	Samples int           // samples averaged by Calibrate
}

var DefaultOpts = Opts{
	Channel: 7,
	Warmup:  10 * time.Second,
	Samples: 1000,
}

type Device struct {
	adc  Sampler
	opts Opts
	log  zerolog.Logger
}

func New(adc Sampler) *Device {
	return NewWithOpts(adc, DefaultOpts)
}

func NewWithOpts(adc Sampler, opts Opts) *Device {
	if opts.Samples <= 0 {
		opts.Samples = DefaultOpts.Samples
	}
	dev := &Device{adc: adc, opts: opts}
	dev.log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	dev.log = dev.log.Level(zerolog.InfoLevel)

	return dev
}

func (dev *Device) EnableDebugging() {
	dev.log = dev.log.Level(zerolog.DebugLevel)
}

// SetLogger replaces the device logger.
func (dev *Device) SetLogger(l zerolog.Logger) {
	dev.log = l
}

// Calibrate waits for the heater to warm up, averages opts.Samples raw
// readings taken in clean air and returns R0.
//
// It blocks for the whole warm-up and sampling; a failed sample aborts the
// calibration. ctx is only checked during the warm-up.
func (dev *Device) Calibrate(ctx context.Context) (float64, error) {
	dev.log.Info().Dur("warmup", dev.opts.Warmup).Msg("warming up the MQ-5")
	if err := sleep(ctx, dev.opts.Warmup); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < dev.opts.Samples; i++ {
		raw, err := dev.adc.Sample(dev.opts.Channel)
		if err != nil {
			return 0, errors.Wrapf(err, "mq5: calibration sample %d", i)
		}
		sum += float64(raw)
	}
	avg := sum / float64(dev.opts.Samples)

	voltage := ads7830.Voltage(avg)
	rsAir := Resistance(avg)
	r0 := rsAir / cleanAirRatio

	dev.log.Info().
		Float64("voltage", voltage).
		Float64("rs_air", rsAir).
		Float64("r0", r0).
		Msg("calibrated")
	if avg == 0 {
		dev.log.Warn().Msg("sensor reads 0V, check the wiring")
	}

	return r0, nil
}

// Read takes one sample and converts it to CO and LPG concentrations
// using the R0 returned by Calibrate.
func (dev *Device) Read(r0 float64) (Reading, error) {
	raw, err := dev.adc.Sample(dev.opts.Channel)
	if err != nil {
		return Reading{}, err
	}

	ratio := Ratio(float64(raw), r0)
	dev.log.Debug().Int("raw", raw).Float64("ratio", ratio).Msg("read")

	return Convert(ratio), nil
}

// Resistance returns the sensor resistance, relative to the load resistor,
// for a raw sample.
func Resistance(raw float64) float64 {
	v := ads7830.Voltage(raw)
	return (supplyVoltage - v) / v
}

// Ratio returns Rs/R0 for a raw sample.
func Ratio(raw, r0 float64) float64 {
	return Resistance(raw) / r0
}

// Convert maps an Rs/R0 ratio to concentrations. A gas is 0 when the
// ratio is outside its table.
func Convert(ratio float64) Reading {
	return Reading{
		CO:  COTable.PPM(ratio),
		LPG: LPGTable.PPM(ratio),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
