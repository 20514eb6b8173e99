package display

import "errors"

// Fake records every screen shown.
type Fake struct {
	Screens [][]Line

	// ShowError, if set, will be returned by Show.
	ShowError error

	Closed bool
}

// Show records a copy of lines.
func (f *Fake) Show(lines []Line) error {
	if f.ShowError != nil {
		return f.ShowError
	}
	f.Screens = append(f.Screens, append([]Line(nil), lines...))
	return nil
}

// Last returns the most recent screen.
func (f *Fake) Last() ([]Line, error) {
	if len(f.Screens) == 0 {
		return nil, errors.New("nothing shown")
	}
	return f.Screens[len(f.Screens)-1], nil
}

// Close marks the display as closed.
func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
