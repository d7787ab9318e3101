// Driver for the ADS7830 8-channel 8-bit I²C analog to digital converter
//
// Datasheet: https://www.ti.com/lit/ds/symlink/ads7830.pdf
package ads7830

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddress is the address of the converter with A0 and A1 tied high.
	// Check it with `i2cdetect -y 1`.
	DefaultAddress = 0x4b

	// Channels on the device.
	Channels = 8

	// single-ended inputs, internal reference off, converter on
	cmdStart = 0x84

	// settle time for one conversion
	settle = 10 * time.Millisecond
)

var (
	ErrInvalidChannel = errors.New("ads7830: invalid channel")
	ErrBus            = errors.New("ads7830: bus error")
	ErrDeviceInit     = errors.New("ads7830: device init failed")
)

type Opts struct {
	Bus     string        // i2creg bus name, empty for the first available one
	Address uint16        // I²C address of the converter
	Settle  time.Duration // wait between the command and the read back
}

var DefaultOpts = Opts{
	Address: DefaultAddress,
	Settle:  settle,
}

// Dev is a handle to an ADS7830 converter.
type Dev struct {
	dev    i2c.Dev
	bus    i2c.BusCloser
	settle time.Duration
	sleep  func(time.Duration)
	log    zerolog.Logger
}

// New opens the first available I²C bus and returns a converter using DefaultOpts.
func New() (*Dev, error) {
	return Open(DefaultOpts)
}

// Open initializes the host drivers, opens the bus named in opts and
// returns a converter on it. The bus is closed by Close.
func Open(opts Opts) (*Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: host: %v", ErrDeviceInit, err)
	}

	bus, err := i2creg.Open(opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("%w: open bus %q: %v", ErrDeviceInit, opts.Bus, err)
	}

	d, err := NewI2C(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, err
	}
	d.bus = bus

	return d, nil
}

// NewI2C returns a converter on an already opened bus.
func NewI2C(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if bus == nil {
		return nil, fmt.Errorf("%w: nil bus", ErrDeviceInit)
	}
	addr := opts.Address
	if addr == 0 {
		addr = DefaultAddress
	}
	if addr > 0x7f {
		return nil, fmt.Errorf("%w: invalid address 0x%x", ErrDeviceInit, addr)
	}

	d := &Dev{
		dev:    i2c.Dev{Addr: addr, Bus: bus},
		settle: opts.Settle,
		sleep:  time.Sleep,
	}
	d.log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	d.log = d.log.Level(zerolog.InfoLevel)

	return d, nil
}

func (d *Dev) EnableDebugging() {
	d.log = d.log.Level(zerolog.DebugLevel)
}

// SetLogger replaces the device logger.
func (d *Dev) SetLogger(l zerolog.Logger) {
	d.log = l
}

func (d *Dev) String() string {
	return fmt.Sprintf("ads7830{%s}", &d.dev)
}

// Sample converts the given channel and returns the raw 8-bit value.
//
// The command byte is written, then after the settle time one byte is
// read back. Bus errors are not retried.
func (d *Dev) Sample(channel int) (int, error) {
	if channel < 0 || channel >= Channels {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	cmd := Command(channel)
	if err := d.dev.Tx([]byte{cmd}, nil); err != nil {
		return 0, fmt.Errorf("%w: write command 0x%02x: %v", ErrBus, cmd, err)
	}

	d.sleep(d.settle)

	var b [1]byte
	if err := d.dev.Tx(nil, b[:]); err != nil {
		return 0, fmt.Errorf("%w: read channel %d: %v", ErrBus, channel, err)
	}
	d.log.Debug().Int("channel", channel).Uint8("raw", b[0]).Msg("sample")

	return int(b[0]), nil
}

// Halt is a no-op, the converter powers down between conversions.
func (d *Dev) Halt() error {
	return nil
}

// Close closes the bus if it was opened by Open.
func (d *Dev) Close() error {
	if d.bus == nil {
		return nil
	}
	return d.bus.Close()
}

// Command returns the control byte selecting channel.
func Command(channel int) byte {
	return cmdStart | byte(channel)<<4
}

// Voltage converts a raw sample to volts on a 5V supply.
//
// The divisor is 1024 although the converter is 8-bit; the gas sensor
// calibration tables were built with it.
func Voltage(raw float64) float64 {
	return raw / 1024 * 5.0
}
