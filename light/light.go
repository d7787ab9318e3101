// Driver for a photoresistor divider read through an ADC channel
package light

import (
	"os"

	"github.com/rs/zerolog"
)

// DefaultChannel is the ADC input the photoresistor is wired to.
const DefaultChannel = 0

// Max is the brightest raw level.
const Max = 255

// Sampler returns raw samples of an ADC channel.
type Sampler interface {
	Sample(channel int) (int, error)
}

// Sensor is the light sensor struct
type Sensor struct {
	adc     Sampler
	channel int
	log     zerolog.Logger
}

// New returns a sensor on DefaultChannel.
func New(adc Sampler) *Sensor {
	return NewOnChannel(adc, DefaultChannel)
}

func NewOnChannel(adc Sampler, channel int) *Sensor {
	s := &Sensor{adc: adc, channel: channel}
	s.log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	s.log = s.log.Level(zerolog.InfoLevel)

	return s
}

func (s *Sensor) EnableDebugging() {
	s.log = s.log.Level(zerolog.DebugLevel)
}

// SetLogger replaces the sensor logger.
func (s *Sensor) SetLogger(l zerolog.Logger) {
	s.log = l
}

// Level returns the raw light level, 0 (dark) to Max.
func (s *Sensor) Level() (int, error) {
	v, err := s.adc.Sample(s.channel)
	if err != nil {
		return 0, err
	}
	s.log.Debug().Int("level", v).Msg("light")

	return v, nil
}

// Percent returns the light level as a percentage of Max.
func (s *Sensor) Percent() (float64, error) {
	v, err := s.Level()
	if err != nil {
		return 0, err
	}
	return float64(v) * 100 / Max, nil
}
