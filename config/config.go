// Package config loads the station configuration file.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ADC      ADCConfig      `yaml:"adc"`
	Climate  ClimateConfig  `yaml:"climate"`
	Light    LightConfig    `yaml:"light"`
	Gas      GasConfig      `yaml:"gas"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Report   ReportConfig   `yaml:"report"`
	Display  DisplayConfig  `yaml:"display"`
}

// ---- HARDWARE ----

type ADCConfig struct {
	Bus     string `yaml:"bus"` // i2creg name, empty for the first bus
	Address uint16 `yaml:"address"`
}

const (
	SensorDHT11  = "dht11"
	SensorBME280 = "bme280"
)

type ClimateConfig struct {
	Sensor  string `yaml:"sensor"`  // dht11 or bme280
	Pin     string `yaml:"pin"`     // dht11 data line
	Address uint16 `yaml:"address"` // bme280 I²C address
}

type LightConfig struct {
	Channel int `yaml:"channel"`
}

type GasConfig struct {
	Channel  int           `yaml:"channel"`
	Warmup   time.Duration `yaml:"warmup"`
	Samples  int           `yaml:"samples"`
	AlarmPPM float64       `yaml:"alarm_ppm"`
}

// ---- SCHEDULE ----

type ScheduleConfig struct {
	Rest        time.Duration `yaml:"rest"`
	GasInterval time.Duration `yaml:"gas_interval"`
	AlarmPause  time.Duration `yaml:"alarm_pause"`
}

// ---- REPORTING ----

type ReportConfig struct {
	Socket  *SocketConfig  `yaml:"socket"`
	MySQL   *MySQLConfig   `yaml:"mysql"`
	MQTT    *MQTTConfig    `yaml:"mqtt"`
	Metrics *MetricsConfig `yaml:"metrics"`
}

type SocketConfig struct {
	Address string `yaml:"address"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Prefix   string `yaml:"prefix"`
	QoS      byte   `yaml:"qos"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type DisplayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the wiring of the reference build: DHT11 on GPIO21,
// ADS7830 at 0x4b, photoresistor on channel 0 and MQ-5 on channel 7,
// reporting to the display server on localhost:8080.
func Default() *Config {
	return &Config{
		ADC:     ADCConfig{Address: 0x4b},
		Climate: ClimateConfig{Sensor: SensorDHT11, Pin: "GPIO21", Address: 0x76},
		Light:   LightConfig{Channel: 0},
		Gas: GasConfig{
			Channel:  7,
			Warmup:   10 * time.Second,
			Samples:  1000,
			AlarmPPM: 200,
		},
		Schedule: ScheduleConfig{
			Rest:        5 * time.Minute,
			GasInterval: 3 * time.Second,
			AlarmPause:  10 * time.Second,
		},
		Report: ReportConfig{
			Socket: &SocketConfig{Address: "127.0.0.1:8080"},
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}
