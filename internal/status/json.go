package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	BootID        string       `json:"boot_id"`
	Control       ControlJSON  `json:"control"`
	Restored      bool         `json:"restored"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ControlJSON is the JSON representation of the control state.
type ControlJSON struct {
	Setpoint       float64 `json:"set_temp"`
	CurrentTemp    float64 `json:"current_temp"`
	PIDOutput      float64 `json:"pid_output"`
	Error          float64 `json:"error"`
	Integral       float64 `json:"integral"`
	Derivative     float64 `json:"derivative"`
	Relay          string  `json:"relay"`
	Running        bool    `json:"running"`
	RunTimeSeconds float64 `json:"run_time_seconds"`
	LogFile        string  `json:"log_file"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SensorMs int64   `json:"sensor_ms"`
	PIDMs    int64   `json:"pid_ms"`
	LogMs    int64   `json:"log_ms"`
	Kp       float64 `json:"kp"`
	Ki       float64 `json:"ki"`
	Kd       float64 `json:"kd"`
	Relay    string  `json:"relay"`
	Broker   string  `json:"broker"`
	HTTPAddr string  `json:"http_addr"`
	DataDir  string  `json:"data_dir"`
}

// RelayString renders a relay state.
func RelayString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Control
	return StatusInner{
		BootID: snap.BootID,
		Control: ControlJSON{
			Setpoint:       c.Setpoint,
			CurrentTemp:    c.CurrentTemp,
			PIDOutput:      c.PIDOutput,
			Error:          c.LastError,
			Integral:       c.Integral,
			Derivative:     c.Derivative,
			Relay:          RelayString(c.RelayOn),
			Running:        c.Running,
			RunTimeSeconds: c.RunTime.Seconds(),
			LogFile:        c.LogFilename,
		},
		Restored:      snap.Restored,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			SensorMs: snap.Config.SensorMs,
			PIDMs:    snap.Config.PIDMs,
			LogMs:    snap.Config.LogMs,
			Kp:       snap.Config.Kp,
			Ki:       snap.Config.Ki,
			Kd:       snap.Config.Kd,
			Relay:    snap.Config.Relay,
			Broker:   snap.Config.Broker,
			HTTPAddr: snap.Config.HTTPAddr,
			DataDir:  snap.Config.DataDir,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
