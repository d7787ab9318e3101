package ads7830

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

type op struct {
	addr uint16
	w    []byte
	r    int
}

// recordBus records every transaction and answers reads with value.
type recordBus struct {
	ops   []op
	value byte
	fail  int // 1-based transaction index to fail, 0 never
}

func (b *recordBus) String() string { return "record" }

func (b *recordBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *recordBus) Tx(addr uint16, w, r []byte) error {
	b.ops = append(b.ops, op{addr: addr, w: append([]byte(nil), w...), r: len(r)})
	if b.fail == len(b.ops) {
		return errors.New("nack")
	}
	for i := range r {
		r[i] = b.value
	}
	return nil
}

func newTestDev(t *testing.T, bus *recordBus) *Dev {
	t.Helper()
	d, err := NewI2C(bus, &Opts{Address: DefaultAddress})
	if err != nil {
		t.Fatalf("NewI2C() err=%v", err)
	}
	d.sleep = func(time.Duration) {}
	return d
}

func TestSample_AllChannels(t *testing.T) {
	for ch := 0; ch < Channels; ch++ {
		bus := &recordBus{value: 0x80 + byte(ch)}
		d := newTestDev(t, bus)

		v, err := d.Sample(ch)
		if err != nil {
			t.Fatalf("Sample(%d) err=%v", ch, err)
		}
		if v != 0x80+ch {
			t.Fatalf("Sample(%d) = %d, want %d", ch, v, 0x80+ch)
		}
		if len(bus.ops) != 2 {
			t.Fatalf("channel %d: expected 2 transactions, got %d", ch, len(bus.ops))
		}

		wr, rd := bus.ops[0], bus.ops[1]
		want := byte(0x84 | ch<<4)
		if len(wr.w) != 1 || wr.w[0] != want || wr.r != 0 {
			t.Fatalf("channel %d: write op = %+v, want command 0x%02x", ch, wr, want)
		}
		if len(rd.w) != 0 || rd.r != 1 {
			t.Fatalf("channel %d: read op = %+v, want 1-byte read", ch, rd)
		}
		if wr.addr != DefaultAddress || rd.addr != DefaultAddress {
			t.Fatalf("channel %d: wrong address", ch)
		}
	}
}

func TestSample_InvalidChannel(t *testing.T) {
	for _, ch := range []int{-1, 8, 100} {
		bus := &recordBus{}
		d := newTestDev(t, bus)

		if _, err := d.Sample(ch); !errors.Is(err, ErrInvalidChannel) {
			t.Fatalf("Sample(%d) err=%v, want ErrInvalidChannel", ch, err)
		}
		if len(bus.ops) != 0 {
			t.Fatalf("Sample(%d) issued %d bus transactions", ch, len(bus.ops))
		}
	}
}

func TestSample_BusError(t *testing.T) {
	for _, fail := range []int{1, 2} {
		bus := &recordBus{fail: fail}
		d := newTestDev(t, bus)

		if _, err := d.Sample(3); !errors.Is(err, ErrBus) {
			t.Fatalf("fail=%d: err=%v, want ErrBus", fail, err)
		}
		if len(bus.ops) != fail {
			t.Fatalf("fail=%d: %d transactions, expected no retry", fail, len(bus.ops))
		}
	}
}

func TestSample_SettleDelay(t *testing.T) {
	bus := &recordBus{}
	d, err := NewI2C(bus, nil)
	if err != nil {
		t.Fatal(err)
	}
	var slept []time.Duration
	d.sleep = func(dur time.Duration) {
		if len(bus.ops) != 1 {
			t.Errorf("settle must happen between write and read, ops=%d", len(bus.ops))
		}
		slept = append(slept, dur)
	}

	if _, err := d.Sample(0); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 1 || slept[0] != 10*time.Millisecond {
		t.Fatalf("slept %v, want [10ms]", slept)
	}
}

func TestSample_Playback(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x4b, W: []byte{0xf4}},
			{Addr: 0x4b, R: []byte{0xc8}},
		},
	}
	d, err := NewI2C(bus, &Opts{Address: 0x4b})
	if err != nil {
		t.Fatal(err)
	}
	d.sleep = func(time.Duration) {}

	v, err := d.Sample(7)
	if err != nil {
		t.Fatalf("Sample(7) err=%v", err)
	}
	if v != 200 {
		t.Fatalf("Sample(7) = %d, want 200", v)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("playback not fully consumed: %v", err)
	}
}

func TestNewI2C_InvalidAddress(t *testing.T) {
	if _, err := NewI2C(&recordBus{}, &Opts{Address: 0x80}); !errors.Is(err, ErrDeviceInit) {
		t.Fatalf("err=%v, want ErrDeviceInit", err)
	}
	if _, err := NewI2C(nil, nil); !errors.Is(err, ErrDeviceInit) {
		t.Fatalf("nil bus: err=%v, want ErrDeviceInit", err)
	}
}

func TestVoltage(t *testing.T) {
	if v := Voltage(512); v != 2.5 {
		t.Fatalf("Voltage(512) = %v, want 2.5", v)
	}
	if v := Voltage(255); v != 255.0/1024*5.0 {
		t.Fatalf("Voltage(255) = %v", v)
	}
}
