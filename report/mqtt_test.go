package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rubiojr/go-strawberrypi/mq5"
	"github.com/rubiojr/go-strawberrypi/station"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool { return !t.timeout }

func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *fakeToken) Error() error { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	msgs  []message
	token *fakeToken
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.msgs = append(p.msgs, message{topic: topic, qos: qos, payload: payload.([]byte)})
	if p.token != nil {
		return p.token
	}
	return &fakeToken{}
}

func TestMQTT_Climate(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMQTT(pub, DefaultMQTTOpts)

	if err := m.ReportClimate(context.Background(), testMeasurement()); err != nil {
		t.Fatalf("ReportClimate() err=%v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.topic != "strawberrypi/climate" || msg.qos != 1 {
		t.Fatalf("topic=%s qos=%d", msg.topic, msg.qos)
	}

	var got ClimatePayload
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatal(err)
	}
	want := ClimatePayload{Timestamp: testTime, Temperature: 21.5, Humidity: 40, Light: 120}
	if !got.Timestamp.Equal(want.Timestamp) || got.Temperature != want.Temperature ||
		got.Humidity != want.Humidity || got.Light != want.Light {
		t.Fatalf("payload = %+v, want %+v", got, want)
	}
}

func TestMQTT_GasAndFailure(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMQTT(pub, MQTTOpts{Prefix: "home/pi"})
	ctx := context.Background()

	if err := m.ReportGas(ctx, station.GasSample{Time: testTime, Reading: mq5.Reading{CO: 10.004}}); err != nil {
		t.Fatal(err)
	}
	if err := m.ReportFailure(ctx, station.Failure{Time: testTime, Stage: station.StageClimate, Err: errors.New("checksum")}); err != nil {
		t.Fatal(err)
	}

	if pub.msgs[0].topic != "home/pi/gas" || pub.msgs[1].topic != "home/pi/error" {
		t.Fatalf("topics = %s, %s", pub.msgs[0].topic, pub.msgs[1].topic)
	}
	var g GasPayload
	if err := json.Unmarshal(pub.msgs[0].payload, &g); err != nil {
		t.Fatal(err)
	}
	if g.CO != 10 || g.Alarm {
		t.Fatalf("gas payload = %+v", g)
	}
	var e ErrorPayload
	if err := json.Unmarshal(pub.msgs[1].payload, &e); err != nil {
		t.Fatal(err)
	}
	if e.Stage != "climate" || e.Error != "checksum" {
		t.Fatalf("error payload = %+v", e)
	}
}

func TestMQTT_PublishErrors(t *testing.T) {
	boom := errors.New("not connected")
	m := NewMQTT(&fakePublisher{token: &fakeToken{err: boom}}, DefaultMQTTOpts)
	if err := m.ReportClimate(context.Background(), testMeasurement()); !errors.Is(err, boom) {
		t.Fatalf("err=%v, want %v", err, boom)
	}

	m = NewMQTT(&fakePublisher{token: &fakeToken{timeout: true}}, DefaultMQTTOpts)
	if err := m.ReportClimate(context.Background(), testMeasurement()); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestMQTT_Topic(t *testing.T) {
	if got := NewMQTT(&fakePublisher{}, MQTTOpts{}).Topic("gas"); got != "gas" {
		t.Fatalf("Topic() = %q", got)
	}
}
