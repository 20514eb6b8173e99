// Package sensor reads calibrated temperatures from a DS18B20 probe.
// The real implementation uses the Linux w1-therm driver through sysfs.
// The fake implementation allows testing without hardware.
package sensor

import (
	"context"
	"errors"
)

var (
	// ErrChecksum is returned when the probe reports a CRC mismatch.
	// It is transient: the next conversion usually succeeds.
	ErrChecksum = errors.New("sensor: crc check failed")

	// ErrNoReading is returned for a missing or power-on-reset conversion.
	ErrNoReading = errors.New("sensor: no reading")
)

// Reader reads a temperature in degrees Celsius.
type Reader interface {
	ReadCelsius(ctx context.Context) (float64, error)
}

// Transient reports whether err is worth retrying on the same pass.
func Transient(err error) bool {
	return errors.Is(err, ErrChecksum) || errors.Is(err, ErrNoReading)
}
