package display

import (
	"log"
	"strings"
)

// LogDisplay writes the screen to the log whenever its content changes.
// Used on boards without an OLED.
type LogDisplay struct {
	last string
}

// NewLogDisplay returns a LogDisplay.
func NewLogDisplay() *LogDisplay {
	return &LogDisplay{}
}

// Show logs lines if they differ from the previous screen.
func (d *LogDisplay) Show(lines []Line) error {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	screen := strings.Join(texts, " | ")
	if screen == d.last {
		return nil
	}
	d.last = screen
	log.Printf("display: %s", screen)
	return nil
}

// Close is a no-op.
func (d *LogDisplay) Close() error { return nil }
