package platform

import "runtime"

// Detect picks the Platform implementation for the running OS, probing
// filesystem paths on Linux to pick among the three DNS backends in
// priority order (systemd-resolved, resolvconf, manual).
func Detect() (Platform, error) {
	return detectOS(runtime.GOOS)
}
