// Driver for the DHT11 humidity and temperature sensor
//
// The sensor talks over a single data line with no clock: after a wake
// request it sends 40 bits where the length of each high pulse encodes the
// bit value. The line is sampled by busy-waiting, so a read must not be
// interrupted by the scheduler.
//
// Datasheet (section 5.2): https://www.mouser.com/datasheet/2/758/DHT11-Technical-Data-Sheet-Translated-Version-1143054.pdf
package dht11

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/cpu"
)

var (
	ErrTimeout  = errors.New("dht11: timeout waiting for the sensor")
	ErrChecksum = errors.New("dht11: checksum mismatch")
)

const frameBits = 40

// Line is the subset of gpio.PinIO the decoder drives.
type Line interface {
	Out(l gpio.Level) error
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// Clock provides the delays of the wake sequence and the busy-wait tick.
type Clock interface {
	Sleep(d time.Duration)
	Spin(d time.Duration)
}

type hostClock struct{}

func (hostClock) Sleep(d time.Duration) { time.Sleep(d) }

func (hostClock) Spin(d time.Duration) { cpu.Nanospin(d) }

type Opts struct {
	Pin        string        // GPIO name of the data line
	WakeLow    time.Duration // host start signal, low
	WakeHigh   time.Duration // host start signal, high
	Iterations int           // maximum number of transitions timed per read
	MaxTicks   int           // ticks without a transition before giving up
	Threshold  int           // ticks above which a high pulse is a 1
}

var DefaultOpts = Opts{
	Pin:        "GPIO21",
	WakeLow:    18 * time.Millisecond,
	WakeHigh:   40 * time.Microsecond,
	Iterations: 85,
	MaxTicks:   255,
	Threshold:  16,
}

// Dev is a DHT11 attached to one GPIO line.
type Dev struct {
	line  Line
	clock Clock
	opts  Opts
	log   zerolog.Logger
}

// New returns a sensor on GPIO21 using DefaultOpts.
func New() (*Dev, error) {
	return NewWithOpts(DefaultOpts)
}

// NewWithOpts initializes the host drivers and looks up opts.Pin.
func NewWithOpts(opts Opts) (*Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	pin := gpioreg.ByName(opts.Pin)
	if pin == nil {
		return nil, fmt.Errorf("dht11: unknown pin %q", opts.Pin)
	}

	return NewWithLine(pin, hostClock{}, opts), nil
}

// NewWithLine returns a sensor on an arbitrary line and clock.
func NewWithLine(line Line, clock Clock, opts Opts) *Dev {
	dev := &Dev{
		line:  line,
		clock: clock,
		opts:  opts,
	}
	dev.log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	dev.log = dev.log.Level(zerolog.InfoLevel)

	return dev
}

func (dev *Dev) EnableDebugging() {
	dev.log = dev.log.Level(zerolog.DebugLevel)
}

// SetLogger replaces the device logger.
func (dev *Dev) SetLogger(l zerolog.Logger) {
	dev.log = l
}

func (dev *Dev) String() string {
	return fmt.Sprintf("dht11{%v}", dev.opts.Pin)
}

// Halt releases the data line.
func (dev *Dev) Halt() error {
	return dev.line.In(gpio.PullNoChange, gpio.NoEdge)
}

// Sense reads the sensor once and fills the temperature and humidity of e.
// Pressure is left untouched. On error e is not modified.
func (dev *Dev) Sense(e *physic.Env) error {
	f, err := dev.Decode()
	if err != nil {
		return err
	}
	e.Temperature = f.Temperature()
	e.Humidity = f.Humidity()

	return nil
}

// Decode wakes the sensor and reads one 40-bit frame.
//
// There are no retries: a stalled line returns ErrTimeout and a
// corrupted frame ErrChecksum.
func (dev *Dev) Decode() (Frame, error) {
	release := lockThread(dev.log)
	defer release()

	if err := dev.wake(); err != nil {
		return Frame{}, err
	}

	f, bits := dev.collect()
	if bits < frameBits {
		dev.log.Debug().Int("bits", bits).Msg("short frame")
		return Frame{}, fmt.Errorf("%w: got %d of %d bits", ErrTimeout, bits, frameBits)
	}
	if !f.Valid() {
		dev.log.Debug().Hex("frame", f[:]).Msg("bad checksum")
		return Frame{}, fmt.Errorf("%w: frame %x", ErrChecksum, f[:])
	}
	dev.log.Debug().Hex("frame", f[:]).Msg("read")

	return f, nil
}

// wake sends the start signal and hands the line over to the sensor.
func (dev *Dev) wake() error {
	if err := dev.line.Out(gpio.Low); err != nil {
		return err
	}
	dev.clock.Sleep(dev.opts.WakeLow)

	if err := dev.line.Out(gpio.High); err != nil {
		return err
	}
	dev.clock.Spin(dev.opts.WakeHigh)

	return dev.line.In(gpio.PullNoChange, gpio.NoEdge)
}

// collect times the line transitions and assembles the frame. It returns
// the number of bits stored.
func (dev *Dev) collect() (Frame, int) {
	var f Frame
	bit := 0
	last := gpio.High

	for i := 0; i < dev.opts.Iterations && bit < frameBits; i++ {
		ticks := 0
		for dev.line.Read() == last {
			ticks++
			dev.clock.Spin(time.Microsecond)
			if ticks == dev.opts.MaxTicks {
				break
			}
		}
		last = dev.line.Read()

		if ticks == dev.opts.MaxTicks {
			break
		}

		// the first four transitions are the sensor acknowledging the
		// request, then every bit is a low pulse followed by the high
		// pulse that carries the value
		if i >= 4 && i%2 == 0 {
			f[bit/8] <<= 1
			if ticks > dev.opts.Threshold {
				f[bit/8] |= 1
			}
			bit++
		}
	}

	return f, bit
}
