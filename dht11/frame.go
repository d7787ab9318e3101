package dht11

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Frame is one reading as sent by the sensor: humidity integral and
// decimal parts, temperature integral and decimal parts, checksum.
type Frame [5]byte

// Checksum returns the low 8 bits of the sum of the four data bytes.
func (f Frame) Checksum() byte {
	return f[0] + f[1] + f[2] + f[3]
}

// Valid reports whether the last byte matches the checksum.
func (f Frame) Valid() bool {
	return f[4] == f.Checksum()
}

// Humidity returns the relative humidity carried by the frame.
func (f Frame) Humidity() physic.RelativeHumidity {
	return physic.RelativeHumidity(f[0])*physic.PercentRH + physic.RelativeHumidity(f[1])*physic.PercentRH/10
}

// Temperature returns the temperature carried by the frame.
func (f Frame) Temperature() physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(f[2])*physic.Celsius + physic.Temperature(f[3])*physic.Celsius/10
}

func (f Frame) String() string {
	return fmt.Sprintf("%d.%d°C %d.%d%%rH", f[2], f[3], f[0], f[1])
}
