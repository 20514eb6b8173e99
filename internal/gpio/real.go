//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealButton reads the encoder push switch from actual hardware.
type RealButton struct {
	line *gpiocdev.Line
}

// NewRealButton requests the switch line as input with pull-up.
func NewRealButton(chip string, pin int) (*RealButton, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	return &RealButton{line: line}, nil
}

// Read returns the raw level: true = released, false = pressed.
func (b *RealButton) Read() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v == 1, nil
}

// Close reconfigures the line to Pi boot defaults and releases it.
func (b *RealButton) Close() error {
	return closeLine("button", b.line)
}

// RealEncoder decodes the rotary encoder from edge events.
// Edges are delivered on the gpiocdev event goroutine, so the decoder is
// guarded by a mutex; Position is safe to call from the scheduler.
type RealEncoder struct {
	mu     sync.Mutex
	dec    *Quadrature
	a, b   bool
	pinCLK int
	lines  *gpiocdev.Lines
}

// NewRealEncoder requests both encoder channels with edge detection.
func NewRealEncoder(chip string, pinCLK, pinDT int) (*RealEncoder, error) {
	e := &RealEncoder{pinCLK: pinCLK}
	e.mu.Lock()
	defer e.mu.Unlock()

	lines, err := gpiocdev.RequestLines(chip, []int{pinCLK, pinDT},
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(e.handle))
	if err != nil {
		return nil, fmt.Errorf("request encoder pins %d/%d: %w", pinCLK, pinDT, err)
	}

	vals := make([]int, 2)
	if err := lines.Values(vals); err != nil {
		lines.Close()
		return nil, fmt.Errorf("read encoder pins: %w", err)
	}
	e.lines = lines
	e.a, e.b = vals[0] == 1, vals[1] == 1
	e.dec = NewQuadrature(e.a, e.b)
	return e, nil
}

func (e *RealEncoder) handle(evt gpiocdev.LineEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dec == nil {
		return
	}
	level := evt.Type == gpiocdev.LineEventRisingEdge
	if evt.Offset == e.pinCLK {
		e.a = level
	} else {
		e.b = level
	}
	e.dec.Update(e.a, e.b)
}

// Position returns detents turned since initialization.
func (e *RealEncoder) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dec.Detents()
}

// Close releases the encoder lines.
func (e *RealEncoder) Close() error {
	if e.lines == nil {
		return nil
	}
	if err := e.lines.Close(); err != nil {
		return fmt.Errorf("close encoder: %w", err)
	}
	return nil
}

// RealBuzzer drives a passive piezo with a software square wave.
type RealBuzzer struct {
	line *gpiocdev.Line
}

// NewRealBuzzer requests the buzzer line as output, initially low.
func NewRealBuzzer(chip string, pin int) (*RealBuzzer, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request buzzer pin %d: %w", pin, err)
	}
	return &RealBuzzer{line: line}, nil
}

// Cue plays the two notes of a rising or falling cue.
func (z *RealBuzzer) Cue(up bool) error {
	for _, hz := range CueNotes(up) {
		if err := z.tone(hz, NoteDuration); err != nil {
			return err
		}
	}
	return nil
}

func (z *RealBuzzer) tone(hz int, d time.Duration) error {
	half := time.Second / time.Duration(2*hz)
	deadline := time.Now().Add(d)
	v := 0
	for time.Now().Before(deadline) {
		v ^= 1
		if err := z.line.SetValue(v); err != nil {
			return fmt.Errorf("buzzer: %w", err)
		}
		time.Sleep(half)
	}
	return z.line.SetValue(0)
}

// Close silences and releases the buzzer line.
func (z *RealBuzzer) Close() error {
	_ = z.line.SetValue(0)
	return closeLine("buzzer", z.line)
}

// closeLine reconfigures a line to match Raspberry Pi boot defaults (input
// with pull-down) before closing, so a reboot starts from a clean state.
func closeLine(name string, l *gpiocdev.Line) error {
	if l == nil {
		return nil
	}
	var errs []error
	if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
	}
	if err := l.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
