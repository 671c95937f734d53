//go:build linux

package platform

import "os"

const (
	resolvectlPath = "/usr/bin/resolvectl"
	resolvconfPath = "/sbin/resolvconf"
)

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// detectOS picks a Linux DNS backend by probing for the helper binaries in
// the priority order spec.md §4.D lists: systemd-resolved, then
// resolvconf, then the manual /etc/resolv.conf rewrite as a last resort
// that always succeeds.
func detectOS(goos string) (Platform, error) {
	switch {
	case exists(resolvectlPath):
		return newLinuxSystemdResolved(), nil
	case exists(resolvconfPath):
		return newLinuxResolvconf(), nil
	default:
		return newLinuxManual("/etc/resolv.conf"), nil
	}
}
