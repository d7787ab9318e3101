// Thin wrapper around perip.io bmxx80, used as a drop-in climate source in
// place of the DHT11
package bme280

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

const DefaultAddress = 0x76

type BME280 struct {
	device *bmxx80.Dev
	log    zerolog.Logger
}

// New returns a sensor on an already opened bus, sharing it with the ADC.
func New(bus i2c.Bus, addr uint16) (*BME280, error) {
	if addr == 0 {
		addr = DefaultAddress
	}

	device, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("bme280: %w", err)
	}

	dev := &BME280{device: device}
	dev.log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	dev.log = dev.log.Level(zerolog.InfoLevel)

	return dev, nil
}

func (dev *BME280) EnableDebugging() {
	dev.log = dev.log.Level(zerolog.DebugLevel)
}

// SetLogger replaces the device logger.
func (dev *BME280) SetLogger(l zerolog.Logger) {
	dev.log = l
}

// Sense fills temperature, humidity and pressure of e.
func (dev *BME280) Sense(e *physic.Env) error {
	var r physic.Env
	if err := dev.device.Sense(&r); err != nil {
		return err
	}
	dev.log.Debug().Stringer("temperature", r.Temperature).Stringer("humidity", r.Humidity).Msg("read")
	*e = r

	return nil
}

func (dev *BME280) String() string {
	return dev.device.String()
}

func (dev *BME280) Halt() error {
	return dev.device.Halt()
}
