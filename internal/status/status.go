// Package status provides a thread-safe status tracker for the cooker daemon.
// The control loop publishes copies of its state here; HTTP handlers and
// MQTT lifecycle events read from it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/cooker/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	SensorMs int64
	PIDMs    int64
	LogMs    int64
	Kp       float64
	Ki       float64
	Kd       float64
	Relay    string // e.g. "http://192.168.1.50" or "mqtt:cmnd/tasmota/POWER"
	Broker   string
	HTTPAddr string
	DataDir  string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Control       logic.State
	BootID        string
	Restored      bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, bootID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			BootID:    bootID,
			Config:    cfg,
		},
	}
}

// Update stores a copy of the control state.
// Called by the renderer whenever the screen is redrawn.
func (t *Tracker) Update(s logic.State) {
	if s.EncoderLastPosition != nil {
		v := *s.EncoderLastPosition
		s.EncoderLastPosition = &v
	}
	t.mu.Lock()
	t.snap.Control = s
	t.mu.Unlock()
}

// SetRestored records whether the state came from a crash snapshot.
func (t *Tracker) SetRestored(restored bool) {
	t.mu.Lock()
	t.snap.Restored = restored
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
