package station

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/rubiojr/go-strawberrypi/mq5"
)

// Climate is one temperature and humidity reading.
type Climate struct {
	Temperature physic.Temperature
	Humidity    physic.RelativeHumidity
}

// Celsius returns the temperature in degrees Celsius.
func (c Climate) Celsius() float64 {
	return float64(c.Temperature-physic.ZeroCelsius) / float64(physic.Celsius)
}

// Percent returns the relative humidity in percent.
func (c Climate) Percent() float64 {
	return float64(c.Humidity) / float64(physic.PercentRH)
}

// Measurement is the result of one acquisition cycle.
type Measurement struct {
	Time time.Time
	Climate
	Light int // raw photoresistor level, 0-255
}

// GasSample is one gas reading taken while resting.
type GasSample struct {
	Time time.Time
	mq5.Reading
	Alarm bool // a concentration is above the alarm threshold
}

type Stage string

const (
	StageCalibration Stage = "calibration"
	StageClimate     Stage = "climate"
	StageLight       Stage = "light"
	StageGas         Stage = "gas"
)

// Failure marks a reading that could not be taken.
type Failure struct {
	Time  time.Time
	Stage Stage
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// ClimateSensor fills temperature and humidity, satisfied by dht11.Dev,
// bme280.BME280 and any periph physic.SenseEnv.
type ClimateSensor interface {
	Sense(e *physic.Env) error
}

type LightSensor interface {
	Level() (int, error)
}

type GasSensor interface {
	Calibrate(ctx context.Context) (float64, error)
	Read(r0 float64) (mq5.Reading, error)
}

// Reporter receives every reading. Implementations must not keep
// references to the hardware.
type Reporter interface {
	ReportClimate(ctx context.Context, m Measurement) error
	ReportGas(ctx context.Context, g GasSample) error
	ReportFailure(ctx context.Context, f Failure) error
}

type nopReporter struct{}

func (nopReporter) ReportClimate(context.Context, Measurement) error { return nil }
func (nopReporter) ReportGas(context.Context, GasSample) error       { return nil }
func (nopReporter) ReportFailure(context.Context, Failure) error     { return nil }
