// Package journal persists the control state across a fault-triggered
// restart. The snapshot is a one-shot recovery record: it is written only on
// the fault path and removed as soon as a load has been attempted.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/sweeney/cooker/internal/logic"
)

// DefaultFilename is the snapshot name inside the data directory.
const DefaultFilename = "state.json"

// Version is the current snapshot schema version.
const Version = 1

// ErrVersion is returned when a snapshot has an unknown schema version.
var ErrVersion = errors.New("journal: unsupported snapshot version")

// Snapshot is the on-disk schema. Clock-derived fields (LastTime,
// RunTimeStart) are not stored; Decode sets them to the load time.
type Snapshot struct {
	Version             int      `json:"version"`
	SavedAt             string   `json:"saved_at,omitempty"`
	Offset              float64  `json:"offset"`
	Setpoint            float64  `json:"set_temp"`
	CurrentTemp         float64  `json:"current_temp"`
	PIDOutput           float64  `json:"pid_output"`
	RelayOn             bool     `json:"is_relay_on"`
	EncoderPosition     float64  `json:"encoder_position"`
	EncoderLastPosition *float64 `json:"encoder_last_position"`
	Dirty               bool     `json:"dirty"`
	Integral            float64  `json:"integral"`
	Derivative          float64  `json:"derivative"`
	LastError           float64  `json:"last_error"`
	Kp                  float64  `json:"kp"`
	Ki                  float64  `json:"ki"`
	Kd                  float64  `json:"kd"`
	ButtonRaw           bool     `json:"button"`
	Running             bool     `json:"running"`
	Heartbeat           string   `json:"heartbeat"`
	LogFilename         string   `json:"filename"`
	RunTimeSeconds      float64  `json:"run_time"`
}

// Encode converts the state to its snapshot form.
func Encode(s *logic.State, now time.Time) Snapshot {
	snap := Snapshot{
		Version:         Version,
		Offset:          finite(s.Offset),
		Setpoint:        finite(s.Setpoint),
		CurrentTemp:     finite(s.CurrentTemp),
		PIDOutput:       finite(s.PIDOutput),
		RelayOn:         s.RelayOn,
		EncoderPosition: finite(s.EncoderPosition),
		Dirty:           s.Dirty,
		Integral:        finite(s.Integral),
		Derivative:      finite(s.Derivative),
		LastError:       finite(s.LastError),
		Kp:              finite(s.Kp),
		Ki:              finite(s.Ki),
		Kd:              finite(s.Kd),
		ButtonRaw:       s.ButtonRaw,
		Running:         s.Running,
		Heartbeat:       s.Heartbeat,
		LogFilename:     s.LogFilename,
		RunTimeSeconds:  finite(s.RunTime.Seconds()),
	}
	if !now.IsZero() {
		snap.SavedAt = now.UTC().Format(time.RFC3339)
	}
	if s.EncoderLastPosition != nil {
		v := finite(*s.EncoderLastPosition)
		snap.EncoderLastPosition = &v
	}
	return snap
}

// Decode validates a snapshot and builds a State from it. Timestamps are set
// to now.
func Decode(snap Snapshot, now time.Time) (*logic.State, error) {
	if snap.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, snap.Version)
	}
	for name, v := range map[string]float64{
		"offset": snap.Offset, "set_temp": snap.Setpoint, "current_temp": snap.CurrentTemp,
		"pid_output": snap.PIDOutput, "encoder_position": snap.EncoderPosition,
		"integral": snap.Integral, "derivative": snap.Derivative, "last_error": snap.LastError,
		"kp": snap.Kp, "ki": snap.Ki, "kd": snap.Kd, "run_time": snap.RunTimeSeconds,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("journal: field %s is not finite", name)
		}
	}

	if p := snap.EncoderLastPosition; p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
		return nil, errors.New("journal: field encoder_last_position is not finite")
	}

	s := logic.NewState(now)
	s.Offset = snap.Offset
	s.Setpoint = snap.Setpoint
	s.CurrentTemp = snap.CurrentTemp
	s.PIDOutput = snap.PIDOutput
	s.RelayOn = snap.RelayOn
	s.EncoderPosition = snap.EncoderPosition
	if snap.EncoderLastPosition != nil {
		v := *snap.EncoderLastPosition
		s.EncoderLastPosition = &v
	}
	s.Dirty = snap.Dirty
	s.Integral = snap.Integral
	s.Derivative = snap.Derivative
	s.LastError = snap.LastError
	s.Kp = snap.Kp
	s.Ki = snap.Ki
	s.Kd = snap.Kd
	s.ButtonRaw = snap.ButtonRaw
	s.Running = snap.Running
	s.Heartbeat = snap.Heartbeat
	s.LogFilename = snap.LogFilename
	s.RunTime = time.Duration(snap.RunTimeSeconds * float64(time.Second))
	return s, nil
}

// finite clamps v into what JSON can carry: infinities become the largest
// finite value of the same sign and NaN becomes zero.
func finite(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

// Marshal returns the indented JSON form of the state.
func Marshal(s *logic.State, now time.Time) ([]byte, error) {
	return json.MarshalIndent(Encode(s, now), "", "  ")
}

// Unmarshal parses and validates a snapshot.
func Unmarshal(data []byte, now time.Time) (*logic.State, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("journal: decode snapshot: %w", err)
	}
	return Decode(snap, now)
}

// Save writes the snapshot atomically: temp file, fsync, rename.
func Save(path string, s *logic.State, now time.Time) error {
	data, err := Marshal(s, now)
	if err != nil {
		return fmt.Errorf("journal: encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("journal: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("journal: write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("journal: sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("journal: close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("journal: rename snapshot: %w", err)
	}
	return nil
}

// Load restores the state from path, if a snapshot exists.
//
// No snapshot: a fresh default state, restored=false.
// A snapshot that cannot be read or validated: a fresh default state,
// restored=false; the failure is only logged.
// In both snapshot cases the file is removed after the attempt.
func Load(path string, now time.Time) (s *logic.State, restored bool) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("journal: no snapshot, new state")
		return logic.NewState(now), false
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("journal: remove snapshot: %v", err)
		}
	}()
	if err != nil {
		log.Printf("journal: read snapshot: %v", err)
		return logic.NewState(now), false
	}

	s, err = Unmarshal(data, now)
	if err != nil {
		log.Printf("journal: failed to load state: %v", err)
		return logic.NewState(now), false
	}
	log.Printf("journal: restored state (setpoint=%.2f running=%v)", s.Setpoint, s.Running)
	return s, true
}
