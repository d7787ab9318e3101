package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/rubiojr/go-strawberrypi/station"
)

// ClimatePayload is published on <prefix>/climate.
type ClimatePayload struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Light       int       `json:"light"`
}

// GasPayload is published on <prefix>/gas.
type GasPayload struct {
	Timestamp time.Time `json:"timestamp"`
	CO        float64   `json:"coPpm"`
	LPG       float64   `json:"lpgPpm"`
	Alarm     bool      `json:"alarm"`
}

// ErrorPayload is published on <prefix>/error.
type ErrorPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
}

// Publisher is the part of mqtt.Client used to publish.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes readings as JSON.
type MQTT struct {
	pub     Publisher
	prefix  string
	qos     byte
	timeout time.Duration
}

type MQTTOpts struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Prefix   string // topic prefix
	QoS      byte
	Timeout  time.Duration
}

var DefaultMQTTOpts = MQTTOpts{
	Broker:   "tcp://localhost:1883",
	ClientID: "strawberrypi",
	Prefix:   "strawberrypi",
	QoS:      1,
	Timeout:  5 * time.Second,
}

// ConnectMQTT connects to the broker and returns the reporter with its client.
func ConnectMQTT(opts MQTTOpts, onLost func(error)) (*MQTT, mqtt.Client, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetCleanSession(true)
	co.SetAutoReconnect(true)
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if onLost != nil {
			onLost(err)
		}
	})

	client := mqtt.NewClient(co)
	if token := client.Connect(); !token.WaitTimeout(opts.Timeout) {
		return nil, nil, fmt.Errorf("connect to %s: timeout", opts.Broker)
	} else if token.Error() != nil {
		return nil, nil, errors.Wrapf(token.Error(), "connect to %s", opts.Broker)
	}

	return NewMQTT(client, opts), client, nil
}

func NewMQTT(pub Publisher, opts MQTTOpts) *MQTT {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultMQTTOpts.Timeout
	}
	return &MQTT{
		pub:     pub,
		prefix:  opts.Prefix,
		qos:     opts.QoS,
		timeout: opts.Timeout,
	}
}

func (m *MQTT) ReportClimate(ctx context.Context, meas station.Measurement) error {
	return m.publish("climate", ClimatePayload{
		Timestamp:   meas.Time,
		Temperature: round(meas.Celsius(), 1),
		Humidity:    round(meas.Percent(), 1),
		Light:       meas.Light,
	})
}

func (m *MQTT) ReportGas(ctx context.Context, g station.GasSample) error {
	return m.publish("gas", GasPayload{
		Timestamp: g.Time,
		CO:        round(g.CO, 2),
		LPG:       round(g.LPG, 2),
		Alarm:     g.Alarm,
	})
}

func (m *MQTT) ReportFailure(ctx context.Context, f station.Failure) error {
	return m.publish("error", ErrorPayload{
		Timestamp: f.Time,
		Stage:     string(f.Stage),
		Error:     fmt.Sprint(f.Err),
	})
}

func (m *MQTT) Topic(kind string) string {
	if m.prefix == "" {
		return kind
	}
	return m.prefix + "/" + kind
}

func (m *MQTT) publish(kind string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode payload")
	}

	topic := m.Topic(kind)
	token := m.pub.Publish(topic, m.qos, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	return errors.Wrapf(token.Error(), "publish to %s", topic)
}
