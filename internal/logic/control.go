package logic

import "time"

// StepPID advances the PID controller by one pass.
//
// While stopped, only LastTime is moved so the first dt after resuming is one
// pass long rather than the whole stopped duration. The output is not
// clamped and there is no anti-windup.
func StepPID(s *State, now time.Time) {
	if !s.Running {
		s.LastTime = now
		return
	}

	dt := now.Sub(s.LastTime).Seconds()
	s.LastTime = now

	err := s.Setpoint - s.CurrentTemp
	s.Integral += err * dt
	if dt > 0 {
		s.Derivative = (err - s.LastError) / dt
	}
	s.LastError = err

	s.PIDOutput = s.Kp*err + s.Ki*s.Integral + s.Kd*s.Derivative
	s.Dirty = true
}

// RelayDecision returns the transition the actuator driver must perform.
// It never asks for a command that would leave the relay where it is.
func RelayDecision(s *State) RelayAction {
	if s.Running && s.PIDOutput > 0 {
		if !s.RelayOn {
			return RelayOn
		}
		return RelayNone
	}
	// Stopped, or output at or below zero.
	if s.RelayOn {
		return RelayOff
	}
	return RelayNone
}

// ButtonEdge records a raw run/stop level. Running toggles on the release
// edge only: the previous level was low (pressed) and the new one differs.
// Returns true if Running changed.
func ButtonEdge(s *State, raw bool) bool {
	toggled := false
	if raw != s.ButtonRaw {
		if !s.ButtonRaw {
			s.Running = !s.Running
			toggled = true
		}
		s.Dirty = true
	}
	s.ButtonRaw = raw
	return toggled
}

// ObserveEncoder applies a relative encoder position to the setpoint.
// Only a changed value counts; repeated identical readings are ignored.
// Returns true if the setpoint changed.
func ObserveEncoder(s *State, ticks int) bool {
	s.EncoderPosition = float64(ticks) + s.Offset
	if s.EncoderLastPosition != nil && *s.EncoderLastPosition == s.EncoderPosition {
		return false
	}
	last := s.EncoderPosition
	s.EncoderLastPosition = &last
	s.Setpoint = s.EncoderPosition
	s.Dirty = true
	return true
}

// TrackRunTime updates the elapsed active time. While stopped the start
// is pinned to now, so the next run starts from zero.
func TrackRunTime(s *State, now time.Time) {
	if s.Running {
		s.RunTime = now.Sub(s.RunTimeStart)
		return
	}
	s.RunTimeStart = now
}

var (
	runningGlyphs = [4]string{"-", `\`, "|", "/"}
	stoppedGlyphs = [4]string{"x", "X", "x", "X"}
)

// HeartbeatGlyph returns the heartbeat glyph for the given uptime.
// The glyph advances once per second.
func HeartbeatGlyph(running bool, uptime time.Duration) string {
	i := int(uptime/time.Second) % 4
	if i < 0 {
		i = -i
	}
	if running {
		return runningGlyphs[i]
	}
	return stoppedGlyphs[i]
}

// UpdateHeartbeat writes the current glyph and marks the state dirty.
func UpdateHeartbeat(s *State, uptime time.Duration) {
	s.Heartbeat = HeartbeatGlyph(s.Running, uptime)
	s.Dirty = true
}
