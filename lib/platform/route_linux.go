//go:build linux

package platform

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gravitational/trace"

	"github.com/kj54321/f5vpn-login/lib/privilege"
	"github.com/kj54321/f5vpn-login/lib/routespec"
)

// linuxSetupRoute implements Platform.SetupRoute the way every Linux DNS
// backend shares: `route <action> -host|-net N/bits gw GW dev IFACE`,
// `-host` when bits == 32 (spec.md §4.D).
func linuxSetupRoute(ctx context.Context, iface, gateway string, net [4]byte, bits int, action RouteAction) error {
	rs := routespec.RouteSpec{Net: net, Bits: bits}
	dest := "-net"
	if bits == 32 {
		dest = "-host"
	}
	argv := []string{"/sbin/route", string(action), dest, rs.String()}
	if gateway != "" {
		argv = append(argv, "gw", gateway)
	}
	if iface != "" {
		argv = append(argv, "dev", iface)
	}
	return trace.Wrap(privilege.RunAsRoot(ctx, argv, nil))
}

// linuxWaitForInterface polls /sys/class/net/<iface>/operstate every five
// seconds. "up" is ready immediately; "unknown" is ready only on its
// second consecutive observation; any other state, including the
// interface not existing yet, is not ready (spec.md §4.D).
func linuxWaitForInterface(ctx context.Context, iface string) error {
	unknownStreak := 0
	for {
		state, err := readOperstate(iface)
		switch {
		case err == nil && state == "up":
			return nil
		case err == nil && state == "unknown":
			unknownStreak++
			if unknownStreak >= 2 {
				return nil
			}
		default:
			unknownStreak = 0
		}

		select {
		case <-ctx.Done():
			return trace.Wrap(ctx.Err())
		case <-time.After(5 * time.Second):
		}
	}
}

func readOperstate(iface string) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/sys/class/net/%s/operstate", iface))
	if err != nil {
		return "", err
	}
	state := string(data)
	for len(state) > 0 && (state[len(state)-1] == '\n' || state[len(state)-1] == '\r') {
		state = state[:len(state)-1]
	}
	return state, nil
}
