// Package reboot restarts the appliance after a fault.
package reboot

import (
	"log"
	"os"
)

// Restarter brings the appliance back to a fresh boot.
// Restart does not return on success.
type Restarter interface {
	Restart() error
}

// ExitRestarter exits the process and relies on the service manager
// (systemd Restart=always) to start it again.
type ExitRestarter struct {
	Code int
	exit func(int)
}

// NewExitRestarter returns a restarter that exits with the given code.
func NewExitRestarter(code int) *ExitRestarter {
	return &ExitRestarter{Code: code, exit: os.Exit}
}

// Restart exits the process.
func (r *ExitRestarter) Restart() error {
	log.Printf("reboot: exiting with status %d", r.Code)
	r.exit(r.Code)
	return nil
}

// Fake records restart requests.
type Fake struct {
	Calls int
	Err   error
}

// Restart counts the call and returns Err.
func (f *Fake) Restart() error {
	f.Calls++
	return f.Err
}
