package relay

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// TasmotaMQTT drives a Tasmota plug through its cmnd/<topic>/POWER topic.
type TasmotaMQTT struct {
	client  paho.Client
	topic   string
	timeout time.Duration
}

// NewTasmotaMQTT returns an actuator publishing on an already connected client.
// device is the Tasmota topic name (e.g. "tasmota_5C1A2B").
func NewTasmotaMQTT(client paho.Client, device string, timeout time.Duration) *TasmotaMQTT {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TasmotaMQTT{
		client:  client,
		topic:   "cmnd/" + device + "/POWER",
		timeout: timeout,
	}
}

// Topic returns the command topic.
func (t *TasmotaMQTT) Topic() string { return t.topic }

// Set publishes ON or OFF with QoS 1.
func (t *TasmotaMQTT) Set(ctx context.Context, on bool) error {
	token := t.client.Publish(t.topic, 1, false, powerCommand(on))

	wait := t.timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < wait {
			wait = d
		}
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("relay %s: publish timeout", powerCommand(on))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("relay %s: %w", powerCommand(on), err)
	}
	return nil
}
