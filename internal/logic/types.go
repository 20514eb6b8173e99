// Package logic contains the pure control logic of the cooker.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Defaults applied to a fresh State.
const (
	DefaultOffset      = 53.0
	DefaultKp          = 2.0
	DefaultKi          = 0.0
	DefaultKd          = 0.5
	DefaultLogFilename = "no sd card"
)

// State is the single record shared by every control task.
//
// It carries no lock. All tasks run on one scheduler goroutine, one at a
// time, so each field write is atomic on its own but a task must not assume
// a group of fields written by another task is consistent. Every field has
// exactly one writing task; the owner is noted per field.
type State struct {
	// Calibration offset added to the encoder position. Written only by
	// the fault supervisor after the scheduler has stopped.
	Offset float64

	// Setpoint input.
	Setpoint            float64
	EncoderPosition     float64
	EncoderLastPosition *float64 // nil until the first observation

	// Sensor sampler.
	CurrentTemp float64

	// PID controller.
	PIDOutput  float64
	Integral   float64
	Derivative float64
	LastError  float64
	LastTime   time.Time
	Kp         float64
	Ki         float64
	Kd         float64

	// Actuator driver.
	RelayOn bool

	// Run/stop input. ButtonRaw is true while released (pulled up).
	Running   bool
	ButtonRaw bool

	// Set by any task that changes displayed data, cleared by the renderer.
	Dirty bool

	// Heartbeat generator.
	Heartbeat string

	// Run-time tracker.
	RunTime      time.Duration
	RunTimeStart time.Time

	// Telemetry logger, assigned once at startup.
	LogFilename string
}

// NewState returns a State with the documented defaults. Clock-derived
// fields are set to now.
func NewState(now time.Time) *State {
	return &State{
		Offset:          DefaultOffset,
		EncoderPosition: DefaultOffset,
		LastTime:        now,
		Kp:              DefaultKp,
		Ki:              DefaultKi,
		Kd:              DefaultKd,
		ButtonRaw:       true,
		LogFilename:     DefaultLogFilename,
		RunTimeStart:    now,
	}
}

// RelayAction is the outcome of one actuator driver decision.
type RelayAction int

const (
	RelayNone RelayAction = iota
	RelayOn
	RelayOff
)

// RelayActionOf returns the command that drives the relay to on.
func RelayActionOf(on bool) RelayAction {
	if on {
		return RelayOn
	}
	return RelayOff
}

func (a RelayAction) String() string {
	switch a {
	case RelayOn:
		return "ON"
	case RelayOff:
		return "OFF"
	default:
		return "NONE"
	}
}
