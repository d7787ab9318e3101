// Package station sequences the sensors: one climate and light reading per
// cycle, then gas polling while resting until the next cycle.
//
// All hardware access goes through one Station and is serialized, the
// sensors share pins and the I²C bus.
package station

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
)

var ErrNotCalibrated = errors.New("station: gas sensor not calibrated")

type Opts struct {
	Rest        time.Duration // time between climate cycles
	GasInterval time.Duration // gas polling period while resting
	AlarmPause  time.Duration // extra pause after a gas alarm
	AlarmPPM    float64       // CO or LPG concentration raising an alarm
}

var DefaultOpts = Opts{
	Rest:        5 * time.Minute,
	GasInterval: 3 * time.Second,
	AlarmPause:  10 * time.Second,
	AlarmPPM:    200,
}

type Station struct {
	mu      sync.Mutex
	climate ClimateSensor
	light   LightSensor
	gas     GasSensor
	r0      float64
	ready   bool

	reporter Reporter
	opts     Opts
	now      func() time.Time
	log      zerolog.Logger
}

func New(climate ClimateSensor, light LightSensor, gas GasSensor, reporter Reporter) *Station {
	return NewWithOpts(climate, light, gas, reporter, DefaultOpts)
}

func NewWithOpts(climate ClimateSensor, light LightSensor, gas GasSensor, reporter Reporter, opts Opts) *Station {
	if reporter == nil {
		reporter = nopReporter{}
	}
	if opts.GasInterval <= 0 {
		opts.GasInterval = DefaultOpts.GasInterval
	}
	s := &Station{
		climate:  climate,
		light:    light,
		gas:      gas,
		reporter: reporter,
		opts:     opts,
		now:      time.Now,
	}
	s.log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	s.log = s.log.Level(zerolog.InfoLevel)

	return s
}

func (s *Station) EnableDebugging() {
	s.log = s.log.Level(zerolog.DebugLevel)
}

// SetLogger replaces the station logger.
func (s *Station) SetLogger(l zerolog.Logger) {
	s.log = l
}

// Calibrate measures the gas sensor baseline. It must be called once
// before PollGas and again after the sensor lost power.
func (s *Station) Calibrate(ctx context.Context) error {
	s.mu.Lock()
	r0, err := s.gas.Calibrate(ctx)
	if err == nil {
		s.r0 = r0
		s.ready = true
	}
	s.mu.Unlock()

	if err != nil {
		s.fail(ctx, StageCalibration, err)
		return err
	}
	s.log.Info().Float64("r0", r0).Msg("gas sensor calibrated")

	return nil
}

// R0 returns the calibrated gas sensor baseline.
func (s *Station) R0() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.r0, s.ready
}

// Cycle reads temperature, humidity and light once and reports the
// measurement, or a failure when any sensor could not be read.
func (s *Station) Cycle(ctx context.Context) (Measurement, error) {
	m, stage, err := s.acquire()
	if err != nil {
		s.fail(ctx, stage, err)
		return Measurement{}, err
	}

	s.log.Info().
		Float64("temperature", m.Celsius()).
		Float64("humidity", m.Percent()).
		Int("light", m.Light).
		Msg("measurement")
	if err := s.reporter.ReportClimate(ctx, m); err != nil {
		s.log.Error().Err(err).Msg("report measurement")
	}

	return m, nil
}

func (s *Station) acquire() (Measurement, Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var e physic.Env
	if err := s.climate.Sense(&e); err != nil {
		return Measurement{}, StageClimate, err
	}

	level, err := s.light.Level()
	if err != nil {
		return Measurement{}, StageLight, err
	}

	return Measurement{
		Time:    s.now(),
		Climate: Climate{Temperature: e.Temperature, Humidity: e.Humidity},
		Light:   level,
	}, "", nil
}

// PollGas reads the gas sensor once and reports the sample.
func (s *Station) PollGas(ctx context.Context) (GasSample, error) {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return GasSample{}, ErrNotCalibrated
	}
	r, err := s.gas.Read(s.r0)
	s.mu.Unlock()

	if err != nil {
		s.fail(ctx, StageGas, err)
		return GasSample{}, err
	}

	g := GasSample{
		Time:    s.now(),
		Reading: r,
		Alarm:   r.Exceeds(s.opts.AlarmPPM),
	}
	ev := s.log.Debug()
	if g.Alarm {
		ev = s.log.Warn()
	}
	ev.Float64("co_ppm", r.CO).Float64("lpg_ppm", r.LPG).Bool("alarm", g.Alarm).Msg("gas")

	if err := s.reporter.ReportGas(ctx, g); err != nil {
		s.log.Error().Err(err).Msg("report gas")
	}

	return g, nil
}

// Rest polls the gas sensor every GasInterval for the Rest period, with an
// extra AlarmPause after each alarm. It returns early only when ctx is
// done.
func (s *Station) Rest(ctx context.Context) error {
	var elapsed time.Duration
	for elapsed < s.opts.Rest {
		g, err := s.PollGas(ctx)
		if errors.Is(err, ErrNotCalibrated) {
			return err
		}
		if err == nil && g.Alarm {
			if err := sleep(ctx, s.opts.AlarmPause); err != nil {
				return err
			}
			elapsed += s.opts.AlarmPause
		}

		if err := sleep(ctx, s.opts.GasInterval); err != nil {
			return err
		}
		elapsed += s.opts.GasInterval
	}

	return nil
}

// Run calibrates the gas sensor and then alternates Cycle and Rest until
// ctx is done. Failed cycles are reported and the next one runs on
// schedule.
func (s *Station) Run(ctx context.Context) error {
	if err := s.Calibrate(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Cycle(ctx); err != nil {
			s.log.Error().Err(err).Msg("cycle failed")
		}
		if err := s.Rest(ctx); err != nil {
			return err
		}
	}
}

func (s *Station) fail(ctx context.Context, stage Stage, err error) {
	s.log.Error().Err(err).Str("stage", string(stage)).Msg("read failed")
	f := Failure{Time: s.now(), Stage: stage, Err: err}
	if err := s.reporter.ReportFailure(ctx, f); err != nil {
		s.log.Error().Err(err).Msg("report failure")
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
