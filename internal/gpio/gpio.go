// Package gpio provides the cooker's front-panel I/O with hardware abstraction:
// the rotary encoder, its push switch and the piezo buzzer.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Button reads the raw run/stop switch level.
type Button interface {
	// Read returns the raw level: true = released (pulled up), false = pressed.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Encoder reports the cumulative relative position of the rotary encoder.
type Encoder interface {
	// Position returns detents turned since initialization.
	Position() int

	// Close releases GPIO resources.
	Close() error
}

// Buzzer plays the two-note transition cue.
type Buzzer interface {
	// Cue plays a rising (up) or falling cue. It blocks for the cue length.
	Cue(up bool) error

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Pin definitions (BCM numbering)
const (
	DefaultPinEncoderCLK = 27
	DefaultPinEncoderDT  = 22
	DefaultPinButton     = 17
	DefaultPinBuzzer     = 18
)

// Cue notes.
const (
	NoteG4 = 392
	NoteC5 = 523

	NoteDuration = 100 * time.Millisecond
)

// CueNotes returns the note frequencies of a cue in play order.
func CueNotes(up bool) [2]int {
	if up {
		return [2]int{NoteG4, NoteC5}
	}
	return [2]int{NoteC5, NoteG4}
}
