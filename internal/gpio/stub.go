//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(chip string, pin int) (*RealButton, error) { return nil, errUnsupported }

// Read is not implemented on non-Linux platforms.
func (b *RealButton) Read() (bool, error) { return true, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error { return nil }

// RealEncoder is not available on non-Linux platforms.
type RealEncoder struct{}

// NewRealEncoder returns an error on non-Linux platforms.
func NewRealEncoder(chip string, pinCLK, pinDT int) (*RealEncoder, error) {
	return nil, errUnsupported
}

// Position is not implemented on non-Linux platforms.
func (e *RealEncoder) Position() int { return 0 }

// Close is not implemented on non-Linux platforms.
func (e *RealEncoder) Close() error { return nil }

// RealBuzzer is not available on non-Linux platforms.
type RealBuzzer struct{}

// NewRealBuzzer returns an error on non-Linux platforms.
func NewRealBuzzer(chip string, pin int) (*RealBuzzer, error) { return nil, errUnsupported }

// Cue is not implemented on non-Linux platforms.
func (z *RealBuzzer) Cue(up bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (z *RealBuzzer) Close() error { return nil }
