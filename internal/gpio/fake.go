package gpio

import "errors"

// FakeButton is a test double that returns scripted switch levels.
type FakeButton struct {
	// Levels contains scripted raw levels (true = released).
	// Each call to Read() consumes the next level.
	Levels []bool

	// index tracks current position in Levels
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeButton creates a FakeButton with the given levels.
func NewFakeButton(levels ...bool) *FakeButton {
	return &FakeButton{Levels: levels}
}

// Read returns the next scripted level.
// If levels are exhausted, returns the last level repeatedly.
func (f *FakeButton) Read() (bool, error) {
	if f.ReadError != nil {
		return true, f.ReadError
	}
	if len(f.Levels) == 0 {
		return true, errors.New("no levels configured")
	}
	v := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}
	return v, nil
}

// Press scripts one press-and-release followed by a steady release.
func (f *FakeButton) Press() {
	f.Levels = append(f.Levels[:f.index:f.index], false, true)
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.Closed = true
	return nil
}

// FakeEncoder is a test double with a settable position.
type FakeEncoder struct {
	Pos    int
	Closed bool
}

// Position returns the current scripted position.
func (f *FakeEncoder) Position() int { return f.Pos }

// Close marks the encoder as closed.
func (f *FakeEncoder) Close() error {
	f.Closed = true
	return nil
}

// FakeBuzzer records cues for test assertions.
type FakeBuzzer struct {
	// Cues contains the direction of every cue played (true = rising).
	Cues []bool

	// CueError, if set, will be returned by Cue.
	CueError error

	Closed bool
}

// Cue records the cue direction.
func (f *FakeBuzzer) Cue(up bool) error {
	if f.CueError != nil {
		return f.CueError
	}
	f.Cues = append(f.Cues, up)
	return nil
}

// Count returns how many rising and falling cues were played.
func (f *FakeBuzzer) Count() (rising, falling int) {
	for _, up := range f.Cues {
		if up {
			rising++
		} else {
			falling++
		}
	}
	return rising, falling
}

// Close marks the buzzer as closed.
func (f *FakeBuzzer) Close() error {
	f.Closed = true
	return nil
}
