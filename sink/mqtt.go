package sink

import (
	"context"
	"encoding/json"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gr-butler/airsense/data"
	"github.com/gr-butler/airsense/env"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

const mqttPublishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client we use.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes one retained JSON message per sensor to
// <prefix>/<sensor>.
type MQTT struct {
	client publisher
	prefix string
	qos    byte
}

type mqttMessage struct {
	Time   time.Time          `json:"time"`
	Status bool               `json:"status"`
	Error  string             `json:"error,omitempty"`
	Fields map[string]float64 `json:"fields,omitempty"`
}

func NewMQTT(cfg env.MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf("MQTT connection lost [%v]", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrap(token.Error(), "mqtt connect")
	}
	logger.Infof("MQTT connected [%v]", cfg.Broker)
	return newMQTT(client, cfg.TopicPrefix, cfg.QoS), nil
}

func newMQTT(client publisher, prefix string, qos byte) *MQTT {
	return &MQTT{client: client, prefix: prefix, qos: qos}
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) Write(_ context.Context, points []*data.Point) error {
	for _, p := range points {
		msg := mqttMessage{Time: p.Time.UTC(), Status: p.Status, Error: p.Error}
		if p.Status {
			msg.Fields = make(map[string]float64, len(p.Fields))
			for _, f := range p.Fields {
				if !math.IsNaN(f.Value) {
					msg.Fields[f.Name] = f.Value
				}
			}
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "mqtt marshal")
		}
		topic := m.prefix + "/" + p.Sensor
		token := m.client.Publish(topic, m.qos, true, payload)
		if !token.WaitTimeout(mqttPublishTimeout) {
			return errors.Errorf("mqtt publish to %s timed out", topic)
		}
		if err := token.Error(); err != nil {
			return errors.Wrapf(err, "mqtt publish to %s", topic)
		}
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
