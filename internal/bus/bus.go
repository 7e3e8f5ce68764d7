// Package bus holds the MQTT connection shared by the command source and the
// notification sink.
package bus

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// OnConnect runs after every (re)connect. Subscriptions belong here so they
// survive broker restarts.
type OnConnect func(c mqtt.Client)

const connectTimeout = 10 * time.Second

// Connect dials the broker. It returns once the first connection is up.
func Connect(cfg Config, log *logrus.Entry, hooks ...OnConnect) (mqtt.Client, error) {
	broker := strings.TrimSpace(cfg.Broker)
	if broker == "" {
		return nil, errors.New("mqtt broker is empty")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	id := cfg.ClientID
	if id == "" {
		id = "gpsmon"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(id).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt connection lost")
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.WithField("broker", broker).Info("mqtt connected")
		for _, h := range hooks {
			h(c)
		}
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return client, nil
}

// Close disconnects, giving in-flight messages a short grace period.
func Close(c mqtt.Client) {
	if c != nil && c.IsConnected() {
		c.Disconnect(250)
	}
}
