// File: machineid.go
// Author: momentics <momentics@gmail.com>
//
// readMachineID backs the built-in GetMachineId peer method (§4.5 step
// 8). Follows sd-bus's own fallback order: /etc/machine-id first, then
// /proc/sys/kernel/random/boot_id with hyphens stripped (see
// DESIGN.md).
package dbus

import (
	"os"
	"strings"
)

func readMachineID() (string, error) {
	if b, err := os.ReadFile("/etc/machine-id"); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	}
	b, err := os.ReadFile("/proc/sys/kernel/random/boot_id")
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(strings.TrimSpace(string(b)), "-", ""), nil
}
