//go:build darwin

package platform

import (
	"context"
	"strings"

	"github.com/gravitational/trace"

	"github.com/kj54321/f5vpn-login/lib/privilege"
	"github.com/kj54321/f5vpn-login/lib/routespec"
)

// darwinPlatform drives /sbin/route for the routing table and a scutil
// script for DNS. The System Configuration framework's native API would
// let the reverse-DNS zones ride along as SupplementalMatchDomains
// without scutil's 256-character script-line limit, but that framework is
// Objective-C/Cgo-only, so this implementation always takes the scutil
// fallback path -- including its omission of the reverse zones when they
// don't fit (spec.md §4.D).
type darwinPlatform struct {
	serviceID string
}

func newDarwinPlatform() *darwinPlatform {
	return &darwinPlatform{}
}

func (p *darwinPlatform) SetupRoute(ctx context.Context, iface, gateway string, net [4]byte, bits int, action RouteAction) error {
	rs := routespec.RouteSpec{Net: net, Bits: bits}
	argv := []string{"/sbin/route", string(action), "-net", rs.String()}
	if iface != "" {
		argv = append(argv, "-interface", iface)
	} else {
		argv = append(argv, gateway)
	}
	return trace.Wrap(privilege.RunAsRoot(ctx, argv, nil))
}

func (p *darwinPlatform) SetupDNS(ctx context.Context, iface, serviceID string, servers, domains, revdnsDomains []string, overrideGateway bool) error {
	p.serviceID = serviceID
	script := buildScutilSetupScript(serviceID, servers, domains, revdnsDomains, overrideGateway)
	return trace.Wrap(privilege.RunAsRoot(ctx, []string{"/usr/sbin/scutil"}, []byte(script)))
}

func (p *darwinPlatform) TeardownDNS(ctx context.Context) error {
	if p.serviceID == "" {
		return nil
	}
	privilege.RunAsRootTolerant(ctx, []string{"/usr/sbin/scutil"}, []byte(buildScutilTeardownScript(p.serviceID)))
	return nil
}

// buildScutilSetupScript renders the scutil(8) script that installs
// ServerAddresses and either SearchDomains (when the tunnel owns the
// default route) or SupplementalMatchDomains (otherwise, dropping the
// reverse-DNS zones if they'd overflow a single script line).
func buildScutilSetupScript(serviceID string, servers, domains, revdnsDomains []string, overrideGateway bool) string {
	key := "State:/Network/Service/" + serviceID + "/DNS"

	var script strings.Builder
	script.WriteString("open\n")
	script.WriteString("d.init\n")
	script.WriteString("d.add ServerAddresses * " + strings.Join(servers, " ") + "\n")
	if overrideGateway {
		script.WriteString("d.add SearchDomains * " + strings.Join(domains, " ") + "\n")
	} else {
		all := append(append([]string{}, domains...), revdnsDomains...)
		if scutilScriptFits(all) {
			script.WriteString("d.add SupplementalMatchDomains * " + strings.Join(all, " ") + "\n")
		} else {
			script.WriteString("d.add SupplementalMatchDomains * " + strings.Join(domains, " ") + "\n")
		}
	}
	script.WriteString("set " + key + "\n")
	script.WriteString("close\n")
	return script.String()
}

func buildScutilTeardownScript(serviceID string) string {
	key := "State:/Network/Service/" + serviceID + "/DNS"
	return "open\nremove " + key + "\nclose\n"
}

// scutilScriptFits reports whether joining domains into one
// space-separated scutil script line stays under the 256-character limit
// scutil imposes per line (spec.md §4.D).
func scutilScriptFits(domains []string) bool {
	return len("d.add SupplementalMatchDomains * "+strings.Join(domains, " ")) <= 256
}
