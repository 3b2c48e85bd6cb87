package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQueueSize      = 32
	mqttPublishTimeout = 2 * time.Second
	mqttDisconnectMs   = 250
)

// mqttClient is the part of the paho client the publisher uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher sends samples to a broker topic from a background
// goroutine. Samples are dropped while the queue is full.
type MQTTPublisher struct {
	client mqttClient
	topic  string
	queue  chan Sample
	done   chan struct{}
	once   sync.Once
}

// NewMQTTPublisher connects to broker and starts the publish loop.
func NewMQTTPublisher(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, token.Error())
	}
	return newMQTTPublisher(client, topic), nil
}

func newMQTTPublisher(client mqttClient, topic string) *MQTTPublisher {
	p := &MQTTPublisher{
		client: client,
		topic:  topic,
		queue:  make(chan Sample, mqttQueueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues s without blocking.
func (p *MQTTPublisher) Publish(s Sample) {
	select {
	case p.queue <- s:
	default:
	}
}

func (p *MQTTPublisher) run() {
	defer close(p.done)
	for s := range p.queue {
		payload, err := json.Marshal(s)
		if err != nil {
			log.Printf("telemetry: encode sample: %v", err)
			continue
		}
		token := p.client.Publish(p.topic, 0, false, payload)
		if !token.WaitTimeout(mqttPublishTimeout) {
			log.Printf("telemetry: MQTT publish timed out")
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("telemetry: MQTT publish error: %v", err)
		}
	}
}

// Close flushes queued samples and disconnects.
func (p *MQTTPublisher) Close() error {
	p.once.Do(func() {
		close(p.queue)
		<-p.done
		p.client.Disconnect(mqttDisconnectMs)
	})
	return nil
}
