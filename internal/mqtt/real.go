package mqtt

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultBacklog is how many messages are kept while the broker is unreachable.
const DefaultBacklog = 600

// publishTimeout bounds how long system events wait for the broker.
const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker.
// Telemetry is fire-and-forget; messages published while offline are
// queued and replayed on reconnect.
type RealPublisher struct {
	client paho.Client

	mu    sync.Mutex
	queue *backlog

	connected atomic.Bool
	connects  atomic.Int32
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// is not reachable within the connect timeout the publisher is still
// returned; paho keeps retrying in the background.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	if broker == "" {
		return nil, fmt.Errorf("empty broker address")
	}
	p := &RealPublisher{queue: newBacklog(DefaultBacklog)}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// newPublisherWithClient wraps an existing client. Used by tests.
func newPublisherWithClient(client paho.Client, capacity int) *RealPublisher {
	p := &RealPublisher{client: client, queue: newBacklog(capacity)}
	p.connected.Store(client.IsConnectionOpen())
	return p
}

// Client exposes the underlying connection so other components
// (the Tasmota relay driver) can share it.
func (p *RealPublisher) Client() paho.Client {
	return p.client
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.connected.Load()
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.connected.Store(true)
	n := p.connects.Add(1)
	log.Printf("mqtt: connected")

	p.mu.Lock()
	queued := p.queue.take()
	p.mu.Unlock()

	// Handlers must not block the paho router.
	go func() {
		if n > 1 {
			payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
			p.send(pending{topic: TopicSystem, payload: payload, qos: 1})
		}
		if len(queued) > 0 {
			log.Printf("mqtt: replaying %d queued messages", len(queued))
		}
		for _, msg := range queued {
			p.send(msg)
		}
	}()
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.connected.Store(false)
	log.Printf("mqtt: connection lost: %v", err)
}

// send queues msg if offline, otherwise publishes it and returns the token.
func (p *RealPublisher) send(msg pending) paho.Token {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.queue.add(msg)
		p.mu.Unlock()
		return nil
	}
	return p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
}

// PublishTelemetry sends a telemetry sample without waiting for the broker.
func (p *RealPublisher) PublishTelemetry(t Telemetry) error {
	payload, err := FormatPayload(t)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	token := p.send(pending{topic: TopicTelemetry, payload: payload})
	if token != nil {
		go func() {
			<-token.Done()
			if err := token.Error(); err != nil {
				log.Printf("mqtt: publish telemetry: %v", err)
			}
		}()
	}
	return nil
}

// PublishSystem sends a system lifecycle event and waits for delivery.
// While offline the event is queued and an error is returned.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	token := p.send(pending{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
	if token == nil {
		return fmt.Errorf("publish system %s: not connected, queued", event.Event)
	}
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}

	return nil
}

// Queued returns the number of messages waiting for a connection.
func (p *RealPublisher) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
