// Command strawberrypi reads the DHT11, photoresistor and MQ-5 sensors and
// reports the readings to the configured consumers.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/rubiojr/go-strawberrypi/ads7830"
	"github.com/rubiojr/go-strawberrypi/bme280"
	"github.com/rubiojr/go-strawberrypi/config"
	"github.com/rubiojr/go-strawberrypi/dht11"
	"github.com/rubiojr/go-strawberrypi/display"
	"github.com/rubiojr/go-strawberrypi/light"
	"github.com/rubiojr/go-strawberrypi/mq5"
	"github.com/rubiojr/go-strawberrypi/report"
	"github.com/rubiojr/go-strawberrypi/station"
)

var (
	configPath = flag.String("config", "", "path to the YAML configuration, defaults are used when empty")
	debug      = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
		}
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validation failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adc, err := ads7830.Open(ads7830.Opts{
		Bus:     cfg.ADC.Bus,
		Address: cfg.ADC.Address,
		Settle:  ads7830.DefaultOpts.Settle,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("ADC setup failed")
	}
	defer adc.Close()
	adc.SetLogger(log.Logger)

	climate, closeClimate := openClimate(cfg)
	defer closeClimate()

	lightSensor := light.NewOnChannel(adc, cfg.Light.Channel)
	lightSensor.SetLogger(log.Logger)

	gas := mq5.NewWithOpts(adc, mq5.Opts{
		Channel: cfg.Gas.Channel,
		Warmup:  cfg.Gas.Warmup,
		Samples: cfg.Gas.Samples,
	})
	gas.SetLogger(log.Logger)

	reporters, closeReporters := buildReporters(ctx, cfg)
	defer closeReporters()

	st := station.NewWithOpts(climate, lightSensor, gas, reporters, station.Opts{
		Rest:        cfg.Schedule.Rest,
		GasInterval: cfg.Schedule.GasInterval,
		AlarmPause:  cfg.Schedule.AlarmPause,
		AlarmPPM:    cfg.Gas.AlarmPPM,
	})
	st.SetLogger(log.Logger)

	log.Info().Msg("station started")
	if err := st.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("station stopped")
	}
	log.Info().Msg("station stopped")
}

func openClimate(cfg *config.Config) (station.ClimateSensor, func()) {
	switch cfg.Climate.Sensor {
	case config.SensorBME280:
		bus, err := i2creg.Open(cfg.ADC.Bus)
		if err != nil {
			log.Fatal().Err(err).Msg("I²C bus open failed")
		}
		dev, err := bme280.New(bus, cfg.Climate.Address)
		if err != nil {
			bus.Close()
			log.Fatal().Err(err).Msg("BME280 setup failed")
		}
		dev.SetLogger(log.Logger)
		return dev, func() {
			dev.Halt()
			bus.Close()
		}
	default:
		opts := dht11.DefaultOpts
		opts.Pin = cfg.Climate.Pin
		dev, err := dht11.NewWithOpts(opts)
		if err != nil {
			log.Fatal().Err(err).Msg("DHT11 setup failed")
		}
		dev.SetLogger(log.Logger)
		return dev, func() { dev.Halt() }
	}
}

func buildReporters(ctx context.Context, cfg *config.Config) (report.Multi, func()) {
	var (
		reporters report.Multi
		closers   []func()
	)
	rc := cfg.Report

	if rc.Socket != nil {
		s := report.NewSocket(rc.Socket.Address)
		reporters = append(reporters, s)
		closers = append(closers, func() { s.Close() })
	}

	if rc.MySQL != nil {
		db, err := report.OpenMySQL(ctx, rc.MySQL.DSN)
		if err != nil {
			// the station keeps running without the database
			log.Error().Err(err).Msg("mysql disabled")
		} else {
			reporters = append(reporters, db)
			closers = append(closers, func() { db.Close() })
		}
	}

	if rc.MQTT != nil {
		opts := report.DefaultMQTTOpts
		opts.Broker = rc.MQTT.Broker
		if rc.MQTT.ClientID != "" {
			opts.ClientID = rc.MQTT.ClientID
		}
		if rc.MQTT.Prefix != "" {
			opts.Prefix = rc.MQTT.Prefix
		}
		opts.QoS = rc.MQTT.QoS
		m, client, err := report.ConnectMQTT(opts, func(err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		})
		if err != nil {
			log.Error().Err(err).Msg("mqtt disabled")
		} else {
			reporters = append(reporters, m)
			closers = append(closers, func() { client.Disconnect(250) })
		}
	}

	if rc.Metrics != nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewBuildInfoCollector())
		m, err := report.NewMetrics(reg)
		if err != nil {
			log.Fatal().Err(err).Msg("metrics setup failed")
		}
		reporters = append(reporters, m)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: rc.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
		closers = append(closers, func() { srv.Close() })
	}

	if cfg.Display.Enabled {
		d, err := display.Init()
		if err != nil {
			log.Error().Err(err).Msg("display disabled")
		} else {
			d.PowerOn()
			reporters = append(reporters, d)
			closers = append(closers, func() {
				d.PowerOff()
				d.Close()
			})
		}
	}

	return reporters, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}
