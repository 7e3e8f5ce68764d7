package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Sink delivers one encoded notification. *udp.Broadcaster is a Sink.
type Sink interface {
	Send(payload []byte) error
}

// Forward subscribes to b and hands every notification, JSON encoded, to
// sink until ctx is done. Send errors are logged and the notification
// dropped.
func Forward(ctx context.Context, b *Broadcaster, name string, sink Sink, log *logrus.Entry) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("sink", name)
	id, ch := b.Subscribe(64)
	defer b.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(n)
			if err != nil {
				log.WithError(err).Error("notification encode failed")
				continue
			}
			if err := sink.Send(payload); err != nil {
				log.WithError(err).Warn("notification not delivered")
			}
		}
	}
}

// PublishTimeout bounds how long one MQTT publish may hold up Forward.
const PublishTimeout = 5 * time.Second

// ErrPublishTimeout is returned when the broker does not acknowledge a
// publish within the sink's timeout.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// MQTTSink publishes notifications on one topic.
type MQTTSink struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

func NewMQTTSink(client mqtt.Client, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: 1, timeout: PublishTimeout}
}

func (s *MQTTSink) Send(payload []byte) error {
	token := s.client.Publish(s.topic, s.qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("mqtt publish %s: %w", s.topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", s.topic, err)
	}
	return nil
}
