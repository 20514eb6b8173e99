package sensor

import (
	"context"
	"errors"
)

// Sample is one scripted reading: a value or an error.
type Sample struct {
	Celsius float64
	Err     error
}

// FakeReader is a test double that returns scripted readings.
type FakeReader struct {
	// Samples are consumed one per call. The last one repeats.
	Samples []Sample

	// Calls counts ReadCelsius invocations.
	Calls int

	index int
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// ReadCelsius returns the next scripted sample.
func (f *FakeReader) ReadCelsius(ctx context.Context) (float64, error) {
	f.Calls++
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Celsius, s.Err
}

// Set replaces the script with a single steady reading.
func (f *FakeReader) Set(celsius float64) {
	f.Samples = []Sample{{Celsius: celsius}}
	f.index = 0
}
