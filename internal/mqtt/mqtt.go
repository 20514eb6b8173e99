// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/cooker/internal/logic"
)

// TopicTelemetry is the MQTT topic for periodic cooking telemetry.
const TopicTelemetry = "kitchen/cooker/telemetry"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "kitchen/cooker/system"

// Publisher publishes to MQTT.
type Publisher interface {
	// PublishTelemetry sends one control-loop sample to the broker.
	// It must not block the caller on network I/O.
	PublishTelemetry(t Telemetry) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, fault).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "FAULT"
	Reason     string // e.g., "SIGTERM", or the fault message
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Telemetry is one sample of the control loop.
type Telemetry struct {
	Timestamp   time.Time
	BootID      string
	Setpoint    float64
	CurrentTemp float64
	PIDOutput   float64
	Error       float64
	Integral    float64
	Derivative  float64
	RelayOn     bool
	Running     bool
	RunTime     time.Duration
}

// TelemetryFromState samples the control state.
func TelemetryFromState(s *logic.State, now time.Time, bootID string) Telemetry {
	return Telemetry{
		Timestamp:   now,
		BootID:      bootID,
		Setpoint:    s.Setpoint,
		CurrentTemp: s.CurrentTemp,
		PIDOutput:   s.PIDOutput,
		Error:       s.LastError,
		Integral:    s.Integral,
		Derivative:  s.Derivative,
		RelayOn:     s.RelayOn,
		Running:     s.Running,
		RunTime:     s.RunTime,
	}
}

// Payload represents the telemetry message payload structure.
type Payload struct {
	Cooker CookerPayload `json:"cooker"`
}

// CookerPayload contains the telemetry details.
type CookerPayload struct {
	Timestamp      string  `json:"timestamp"`
	BootID         string  `json:"boot_id,omitempty"`
	Setpoint       float64 `json:"set_temp"`
	CurrentTemp    float64 `json:"current_temp"`
	PIDOutput      float64 `json:"pid"`
	Error          float64 `json:"error"`
	Integral       float64 `json:"integral"`
	Derivative     float64 `json:"derivative"`
	Relay          string  `json:"relay"`
	Running        bool    `json:"running"`
	RunTimeSeconds float64 `json:"run_time_seconds"`
}

// FormatPayload creates the JSON payload for a telemetry sample.
func FormatPayload(t Telemetry) ([]byte, error) {
	relay := "OFF"
	if t.RelayOn {
		relay = "ON"
	}
	payload := Payload{
		Cooker: CookerPayload{
			Timestamp:      t.Timestamp.UTC().Format(time.RFC3339),
			BootID:         t.BootID,
			Setpoint:       t.Setpoint,
			CurrentTemp:    t.CurrentTemp,
			PIDOutput:      t.PIDOutput,
			Error:          t.Error,
			Integral:       t.Integral,
			Derivative:     t.Derivative,
			Relay:          relay,
			Running:        t.Running,
			RunTimeSeconds: t.RunTime.Seconds(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
