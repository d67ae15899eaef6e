package channel

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttQuiesce is how long Disconnect waits for in-flight work, in
// milliseconds.
const mqttQuiesce = 250

// MQTT is a channel fed by MQTT subscriptions. Every message on the
// subscribed topics must be an event envelope.
type MQTT struct {
	client mqtt.Client
	topics []string
	qos    byte
	queue  *Queue
	opts   options
}

// NewMQTT creates the client from clientOpts. Call Start to connect and
// subscribe.
func NewMQTT(clientOpts *mqtt.ClientOptions, topics []string, qos byte, opts ...Option) *MQTT {
	m := &MQTT{
		topics: topics,
		qos:    qos,
		queue:  NewQueue(),
		opts:   buildOptions(opts),
	}
	clientOpts.SetConnectionLostHandler(m.connectionLost)
	m.client = mqtt.NewClient(clientOpts)
	return m
}

// Start connects to the broker and subscribes to every topic.
func (m *MQTT) Start() error {
	if len(m.topics) == 0 {
		return fmt.Errorf("mqtt channel: no topics")
	}
	if t := m.client.Connect(); t.Wait() && t.Error() != nil {
		return fmt.Errorf("mqtt channel: connect: %w", t.Error())
	}
	for _, topic := range m.topics {
		if t := m.client.Subscribe(topic, m.qos, m.handle); t.Wait() && t.Error() != nil {
			return fmt.Errorf("mqtt channel: subscribe %s: %w", topic, t.Error())
		}
	}
	m.opts.logger.Info("mqtt channel subscribed", "topics", m.topics, "qos", m.qos)
	return nil
}

// handle is the paho message handler. It runs on paho's goroutine.
func (m *MQTT) handle(_ mqtt.Client, msg mqtt.Message) {
	deliver(m.queue, &m.opts, msg.Topic(), msg.Payload())
}

func (m *MQTT) connectionLost(_ mqtt.Client, err error) {
	m.opts.logger.Error("mqtt connection lost", "error", err)
	m.queue.Fail(fmt.Errorf("mqtt channel: connection lost: %w", err))
}

// PollAll implements Channel.
func (m *MQTT) PollAll() ([]any, error) {
	return m.queue.PollAll()
}

// Close unsubscribes and disconnects.
func (m *MQTT) Close() error {
	defer m.queue.Close()
	if !m.client.IsConnected() {
		return nil
	}
	if t := m.client.Unsubscribe(m.topics...); t.Wait() && t.Error() != nil {
		m.opts.logger.Warn("mqtt unsubscribe failed", "error", t.Error())
	}
	m.client.Disconnect(mqttQuiesce)
	return nil
}
