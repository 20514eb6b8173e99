// Package relay switches the remote smart plug that powers the heater.
// Commands are idempotent: sending ON to a plug that is on is harmless.
package relay

import (
	"context"
	"log"
)

// Actuator switches the heater plug.
type Actuator interface {
	Set(ctx context.Context, on bool) error
}

// powerCommand returns the Tasmota POWER argument.
func powerCommand(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// Discard accepts every command without switching anything. Used on the
// bench when no plug is configured.
type Discard struct{}

// Set logs the command.
func (Discard) Set(ctx context.Context, on bool) error {
	log.Printf("relay: %s (no plug configured)", powerCommand(on))
	return nil
}
