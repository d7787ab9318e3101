package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.ADC.Address == 0 || cfg.ADC.Address > 0x7f {
		return fmt.Errorf("adc.address 0x%x out of range", cfg.ADC.Address)
	}

	switch cfg.Climate.Sensor {
	case SensorDHT11:
		if cfg.Climate.Pin == "" {
			return fmt.Errorf("climate.pin is required for %s", SensorDHT11)
		}
	case SensorBME280:
		if cfg.Climate.Address > 0x7f {
			return fmt.Errorf("climate.address 0x%x out of range", cfg.Climate.Address)
		}
	default:
		return fmt.Errorf("climate.sensor %q unknown (want %s or %s)", cfg.Climate.Sensor, SensorDHT11, SensorBME280)
	}

	if err := channel("light.channel", cfg.Light.Channel); err != nil {
		return err
	}
	if err := channel("gas.channel", cfg.Gas.Channel); err != nil {
		return err
	}
	if cfg.Light.Channel == cfg.Gas.Channel {
		return fmt.Errorf("light.channel and gas.channel both use channel %d", cfg.Gas.Channel)
	}

	if cfg.Gas.Samples <= 0 {
		return fmt.Errorf("gas.samples must be > 0")
	}
	if cfg.Gas.Warmup < 0 {
		return fmt.Errorf("gas.warmup must be >= 0")
	}
	if cfg.Gas.AlarmPPM <= 0 {
		return fmt.Errorf("gas.alarm_ppm must be > 0")
	}

	s := cfg.Schedule
	if s.Rest < 0 || s.AlarmPause < 0 {
		return fmt.Errorf("schedule durations must be >= 0")
	}
	if s.GasInterval <= 0 {
		return fmt.Errorf("schedule.gas_interval must be > 0")
	}

	r := cfg.Report
	if r.Socket != nil && r.Socket.Address == "" {
		return fmt.Errorf("report.socket.address is required")
	}
	if r.MySQL != nil && r.MySQL.DSN == "" {
		return fmt.Errorf("report.mysql.dsn is required")
	}
	if r.MQTT != nil {
		if r.MQTT.Broker == "" {
			return fmt.Errorf("report.mqtt.broker is required")
		}
		if r.MQTT.QoS > 2 {
			return fmt.Errorf("report.mqtt.qos %d invalid", r.MQTT.QoS)
		}
	}
	if r.Metrics != nil && r.Metrics.Listen == "" {
		return fmt.Errorf("report.metrics.listen is required")
	}

	return nil
}

func channel(name string, ch int) error {
	if ch < 0 || ch > 7 {
		return fmt.Errorf("%s %d out of range [0,7]", name, ch)
	}
	return nil
}
