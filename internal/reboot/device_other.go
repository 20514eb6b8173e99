//go:build !linux

package reboot

import "errors"

// DeviceRestarter is not available on non-Linux platforms.
type DeviceRestarter struct{}

// Restart returns an error on non-Linux platforms.
func (DeviceRestarter) Restart() error {
	return errors.New("reboot: not supported on this platform (requires Linux)")
}
