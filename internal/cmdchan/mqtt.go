package cmdchan

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTTimeout bounds how long one MQTT command waits for the monitor.
const MQTTTimeout = 5 * time.Second

// MQTTHandler returns the paho callback for the command topic. Each message
// payload is one frame. When replyTopic is set the two byte reply is
// published there.
func (c *Channel) MQTTHandler(ctx context.Context, replyTopic string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		hctx, cancel := context.WithTimeout(ctx, MQTTTimeout)
		defer cancel()
		out, err := c.Handle(hctx, msg.Payload())
		if replyTopic == "" {
			return
		}
		client.Publish(replyTopic, 0, false, Reply(out, err))
	}
}

// SubscribeMQTT subscribes the command topic on client.
func (c *Channel) SubscribeMQTT(ctx context.Context, client mqtt.Client, topic, replyTopic string) error {
	token := client.Subscribe(topic, 1, c.MQTTHandler(ctx, replyTopic))
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	c.log.WithField("topic", topic).Info("gps command topic subscribed")
	return nil
}
