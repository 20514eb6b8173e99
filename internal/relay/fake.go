package relay

import "context"

// Fake records commands for test assertions.
type Fake struct {
	// Commands contains every commanded state in order.
	Commands []bool

	// SetError, if set, will be returned by Set (the command is still recorded).
	SetError error
}

// Set records the command.
func (f *Fake) Set(ctx context.Context, on bool) error {
	f.Commands = append(f.Commands, on)
	return f.SetError
}

// Count returns how many ON and OFF commands were sent.
func (f *Fake) Count() (on, off int) {
	for _, c := range f.Commands {
		if c {
			on++
		} else {
			off++
		}
	}
	return on, off
}

// Last returns the most recent command and whether there was one.
func (f *Fake) Last() (bool, bool) {
	if len(f.Commands) == 0 {
		return false, false
	}
	return f.Commands[len(f.Commands)-1], true
}
