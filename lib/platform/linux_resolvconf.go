//go:build linux

package platform

import (
	"context"
	"strings"

	"github.com/gravitational/trace"

	"github.com/kj54321/f5vpn-login/lib/privilege"
)

// linuxResolvconf drives resolvconf(8). The "tun-" record prefix is
// deliberate: it controls resolvconf's merge ordering relative to other
// interfaces (spec.md §4.D).
type linuxResolvconf struct {
	recordName string
}

func newLinuxResolvconf() *linuxResolvconf {
	return &linuxResolvconf{}
}

func (p *linuxResolvconf) SetupRoute(ctx context.Context, iface, gateway string, net [4]byte, bits int, action RouteAction) error {
	return linuxSetupRoute(ctx, iface, gateway, net, bits, action)
}

func (p *linuxResolvconf) WaitForInterface(ctx context.Context, iface string) error {
	return linuxWaitForInterface(ctx, iface)
}

func (p *linuxResolvconf) SetupDNS(ctx context.Context, iface, serviceID string, servers, domains, revdnsDomains []string, overrideGateway bool) error {
	p.recordName = "tun-" + iface
	all := domains
	if !overrideGateway {
		all = append(append([]string{}, domains...), revdnsDomains...)
	}
	var body strings.Builder
	for _, s := range servers {
		body.WriteString("nameserver " + s + "\n")
	}
	body.WriteString("search " + strings.Join(all, " ") + "\n")
	return trace.Wrap(privilege.RunAsRoot(ctx, []string{"/sbin/resolvconf", "-a", p.recordName}, []byte(body.String())))
}

func (p *linuxResolvconf) TeardownDNS(ctx context.Context) error {
	if p.recordName == "" {
		return nil
	}
	privilege.RunAsRootTolerant(ctx, []string{"/sbin/resolvconf", "-d", p.recordName}, nil)
	return nil
}
