package reboot

import (
	"fmt"
	"log"

	"golang.org/x/sys/unix"
)

// DeviceRestarter reboots the whole machine.
type DeviceRestarter struct{}

// Restart flushes filesystems and reboots. Requires CAP_SYS_BOOT.
func (DeviceRestarter) Restart() error {
	log.Printf("reboot: syncing filesystems and rebooting")
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}
