// Package bus wraps the MQTT client that carries telemetry, valve
// commands, and node/hub presence between the hub and its field nodes.
package bus

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	keepAlive  = 30 * time.Second
	qosAtLeastOnce = byte(1)
)

// Handler receives one inbound message off any subscribed topic.
type Handler func(topic string, payload []byte)

// Adapter is the hub's MQTT client: clean-session false, Last-Will
// announcing the hub offline, auto-reconnect with re-subscribe on every
// (re)connect.
type Adapter struct {
	client         mqtt.Client
	handler        Handler
	onConnLost     func(error)
	onConnRestored func()
}

// Config names the broker and credentials to connect with.
type Config struct {
	BrokerURL string // e.g. "tcp://127.0.0.1:1883"
	ClientID  string
	Username  string
	Password  string
}

// New constructs an Adapter and dials the broker. handler is invoked for
// every message on every subscribed filter; onConnLost/onConnRestored feed
// the Supervisor's MQTT grace-period timer.
func New(cfg Config, handler Handler, onConnLost func(error), onConnRestored func()) (*Adapter, error) {
	a := &Adapter{handler: handler, onConnLost: onConnLost, onConnRestored: onConnRestored}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(false)
	opts.SetKeepAlive(keepAlive)
	opts.SetAutoReconnect(true)
	opts.SetWill(TopicHubStatus, FormatOnOff(false), qosAtLeastOnce, true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("bus: connection lost: %v", err)
		if a.onConnLost != nil {
			a.onConnLost(err)
		}
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := a.resubscribeAndAnnounce(c); err != nil {
			log.Printf("bus: post-connect setup failed: %v", err)
			return
		}
		if a.onConnRestored != nil {
			a.onConnRestored()
		}
	})
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		a.handler(msg.Topic(), msg.Payload())
	})

	a.client = mqtt.NewClient(opts)
	token := a.client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.BrokerURL, token.Error())
	}
	return a, nil
}

// resubscribeAndAnnounce runs the re-subscribe + online-announce sequence
// the spec requires on every ConnAck, including the first.
func (a *Adapter) resubscribeAndAnnounce(c mqtt.Client) error {
	for _, filter := range SubscriptionFilters {
		token := c.Subscribe(filter, qosAtLeastOnce, nil)
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", filter, token.Error())
		}
	}
	token := c.Publish(TopicHubStatus, qosAtLeastOnce, true, FormatOnOff(true))
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("announce online: %w", token.Error())
	}
	return nil
}

// Publish sends payload to topic and blocks for the broker's ack,
// returning any publish error synchronously so callers can treat it like
// any other fallible I/O call.
func (a *Adapter) Publish(topic string, retained bool, payload string) error {
	token := a.client.Publish(topic, qosAtLeastOnce, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// PublishHubOffline sends the explicit, retained offline announcement
// used during graceful shutdown — distinct from the broker
// automatically delivering the Last-Will on an unclean disconnect.
func (a *Adapter) PublishHubOffline() error {
	return a.Publish(TopicHubStatus, true, FormatOnOff(false))
}

// Close disconnects from the broker, waiting up to the given grace period
// (in milliseconds) for in-flight work to drain.
func (a *Adapter) Close(graceMillis uint) {
	a.client.Disconnect(graceMillis)
}

// IsConnected reports the client's current connection state.
func (a *Adapter) IsConnected() bool {
	return a.client.IsConnected()
}
