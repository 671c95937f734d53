package orchestrator

import (
	"bufio"
	"os/exec"
	"strings"

	"github.com/gravitational/trace"
)

// defaultRoute is the gateway IP and interface name parsed out of the
// running host's default route (spec.md §4.H step 7).
type defaultRoute struct {
	GatewayIP string
	Interface string
}

// detectDefaultRoute runs `netstat -rn` and returns the first line whose
// destination column is "default" or "0.0.0.0", the same heuristic the
// original program's `netstat -rn | grep '^default\|^0.0.0.0'` uses.
func detectDefaultRoute() (defaultRoute, error) {
	out, err := exec.Command("netstat", "-rn").Output()
	if err != nil {
		return defaultRoute{}, trace.Wrap(err, "running netstat -rn")
	}
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "default") || strings.HasPrefix(line, "0.0.0.0") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			return defaultRoute{GatewayIP: fields[1], Interface: fields[len(fields)-1]}, nil
		}
	}
	return defaultRoute{}, trace.NotFound("no default route found in netstat output")
}
