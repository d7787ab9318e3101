package dht11

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

type pulse struct {
	level gpio.Level
	us    int
}

// waveform replays pulses on a virtual timeline. Time only advances
// through Spin while the line is in input mode.
type waveform struct {
	gpiotest.Pin
	pulses  []pulse
	now     int
	reading bool
	outs    []gpio.Level
	spins   int
}

func (w *waveform) Out(l gpio.Level) error {
	w.outs = append(w.outs, l)
	w.reading = false
	return w.Pin.Out(l)
}

func (w *waveform) In(pull gpio.Pull, edge gpio.Edge) error {
	w.reading = true
	w.now = 0
	return nil
}

func (w *waveform) Read() gpio.Level {
	t := w.now
	for _, p := range w.pulses {
		if t < p.us {
			return p.level
		}
		t -= p.us
	}
	// released line is pulled up
	return gpio.High
}

func (w *waveform) Sleep(d time.Duration) {}

func (w *waveform) Spin(d time.Duration) {
	if w.reading {
		w.spins++
		w.now += int(d / time.Microsecond)
	}
}

const (
	zeroUS = 8
	oneUS  = 30
)

// sensorWave builds the waveform of a sensor answering with frame f.
func sensorWave(f [5]byte) []pulse {
	p := []pulse{
		{gpio.High, 30}, // line released by the host
		{gpio.Low, 80},  // sensor response
		{gpio.High, 80},
	}
	for _, b := range f {
		for i := 7; i >= 0; i-- {
			us := zeroUS
			if b&(1<<uint(i)) != 0 {
				us = oneUS
			}
			p = append(p, pulse{gpio.Low, 50}, pulse{gpio.High, us})
		}
	}
	return append(p, pulse{gpio.Low, 50})
}

func newTestDev(w *waveform) *Dev {
	return NewWithLine(w, w, DefaultOpts)
}

func TestDecode(t *testing.T) {
	want := Frame{0x37, 0x00, 0x18, 0x05, 0x54}
	w := &waveform{pulses: sensorWave(want)}
	dev := newTestDev(w)

	got, err := dev.Decode()
	if err != nil {
		t.Fatalf("Decode() err=%v", err)
	}
	if got != want {
		t.Fatalf("Decode() = %x, want %x", got[:], want[:])
	}
	if len(w.outs) != 2 || w.outs[0] != gpio.Low || w.outs[1] != gpio.High {
		t.Fatalf("wake sequence = %v, want [Low High]", w.outs)
	}
}

func TestDecode_ChecksumProperty(t *testing.T) {
	cases := [][4]byte{
		{0, 0, 0, 0},
		{0xff, 0xff, 0xff, 0xff},
		{55, 0, 24, 5},
		{0x80, 0x01, 0x7f, 0xfe},
		{1, 2, 3, 4},
	}
	for _, c := range cases {
		sum := byte((int(c[0]) + int(c[1]) + int(c[2]) + int(c[3])) & 0xff)

		good := Frame{c[0], c[1], c[2], c[3], sum}
		if _, err := newTestDev(&waveform{pulses: sensorWave(good)}).Decode(); err != nil {
			t.Fatalf("frame %x: err=%v", good[:], err)
		}

		for _, delta := range []byte{1, 0x80, 0xff} {
			bad := good
			bad[4] = sum + delta
			_, err := newTestDev(&waveform{pulses: sensorWave(bad)}).Decode()
			if !errors.Is(err, ErrChecksum) {
				t.Fatalf("frame %x: err=%v, want ErrChecksum", bad[:], err)
			}
		}
	}
}

func TestDecode_StalledLine(t *testing.T) {
	w := &waveform{pulses: []pulse{{gpio.High, 1 << 30}}}
	dev := newTestDev(w)

	_, err := dev.Decode()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v, want ErrTimeout", err)
	}
	if w.spins > DefaultOpts.MaxTicks {
		t.Fatalf("spun %d ticks, budget is %d", w.spins, DefaultOpts.MaxTicks)
	}
}

func TestDecode_StallMidFrame(t *testing.T) {
	p := sensorWave(Frame{0x37, 0x00, 0x18, 0x05, 0x54})
	// sensor stops after 20 bits and holds the line low
	p = append(p[:3+40], pulse{gpio.Low, 1 << 30})
	dev := newTestDev(&waveform{pulses: p})

	if _, err := dev.Decode(); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v, want ErrTimeout", err)
	}
}

func TestDecode_ResetsBetweenCalls(t *testing.T) {
	first := Frame{0xff, 0xff, 0xff, 0xff, 0xfc}
	second := Frame{0x01, 0x00, 0x02, 0x00, 0x03}

	w := &waveform{pulses: sensorWave(first)}
	dev := newTestDev(w)
	if _, err := dev.Decode(); err != nil {
		t.Fatal(err)
	}

	w.pulses = sensorWave(second)
	got, err := dev.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if got != second {
		t.Fatalf("second Decode() = %x, want %x", got[:], second[:])
	}
}

func TestSense(t *testing.T) {
	f := Frame{55, 0, 24, 5, 84}
	dev := newTestDev(&waveform{pulses: sensorWave(f)})

	e := physic.Env{Pressure: 101 * physic.KiloPascal}
	if err := dev.Sense(&e); err != nil {
		t.Fatalf("Sense() err=%v", err)
	}
	if want := physic.ZeroCelsius + 24*physic.Celsius + 500*physic.MilliCelsius; e.Temperature != want {
		t.Errorf("Temperature = %s, want %s", e.Temperature, want)
	}
	if want := 55 * physic.PercentRH; e.Humidity != want {
		t.Errorf("Humidity = %s, want %s", e.Humidity, want)
	}
	if e.Pressure != 101*physic.KiloPascal {
		t.Errorf("Pressure modified: %s", e.Pressure)
	}
}

func TestSense_ErrorLeavesEnv(t *testing.T) {
	dev := newTestDev(&waveform{pulses: []pulse{{gpio.High, 1 << 30}}})

	e := physic.Env{Temperature: physic.ZeroCelsius}
	if err := dev.Sense(&e); err == nil {
		t.Fatal("expected error")
	}
	if e.Temperature != physic.ZeroCelsius || e.Humidity != 0 {
		t.Fatalf("env modified on error: %+v", e)
	}
}
