// Package display renders the cooker status onto a small text surface.
package display

import (
	"fmt"
	"time"

	"github.com/sweeney/cooker/internal/logic"
)

// Line is one positioned line of text. Row is in text rows from the top.
type Line struct {
	Text string
	Row  int
	Size int
}

// Display accepts an ordered set of lines and presents them.
type Display interface {
	// Show clears the surface, draws lines and flushes.
	Show(lines []Line) error

	// Close releases the device.
	Close() error
}

// Layout returns the status screen for s.
func Layout(s *logic.State) []Line {
	button := "_ "
	if s.ButtonRaw {
		button = "T "
	}
	mode := "stopped "
	if s.Running {
		if s.RelayOn {
			mode = "relay on "
		} else {
			mode = "relay off "
		}
	}
	return []Line{
		{Row: 0, Size: 1, Text: fmt.Sprintf("tgt:%.2fc", s.Setpoint)},
		{Row: 1, Size: 1, Text: fmt.Sprintf("cur:%.2fc", s.CurrentTemp)},
		{Row: 2, Size: 1, Text: fmt.Sprintf("pid:%.2f", s.PIDOutput)},
		{Row: 3, Size: 1, Text: button + mode + s.Heartbeat},
		{Row: 5, Size: 1, Text: FormatRunTime(s.RunTime)},
		{Row: 6, Size: 1, Text: "logging to " + s.LogFilename},
	}
}

// FaultLines is the screen shown on the fault path.
func FaultLines(class, msg string) []Line {
	return []Line{
		{Row: 0, Size: 1, Text: msg},
		{Row: 1, Size: 1, Text: class},
	}
}

// Splash is a single large line.
func Splash(text string) []Line {
	return []Line{{Row: 0, Size: 2, Text: text}}
}

// FormatRunTime renders d as H:MM:SS.mmm.
func FormatRunTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	sec := int(d/time.Second) % 60
	ms := int(d/time.Millisecond) % 1000
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, sec, ms)
}
