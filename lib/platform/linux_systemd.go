//go:build linux

package platform

import (
	"context"

	"github.com/gravitational/trace"

	"github.com/kj54321/f5vpn-login/lib/privilege"
)

// linuxSystemdResolved drives resolvectl(1), the highest-priority Linux DNS
// backend (spec.md §4.D priority order).
type linuxSystemdResolved struct {
	iface string
}

func newLinuxSystemdResolved() *linuxSystemdResolved {
	return &linuxSystemdResolved{}
}

func (p *linuxSystemdResolved) SetupRoute(ctx context.Context, iface, gateway string, net [4]byte, bits int, action RouteAction) error {
	return linuxSetupRoute(ctx, iface, gateway, net, bits, action)
}

func (p *linuxSystemdResolved) WaitForInterface(ctx context.Context, iface string) error {
	return linuxWaitForInterface(ctx, iface)
}

func (p *linuxSystemdResolved) SetupDNS(ctx context.Context, iface, serviceID string, servers, domains, revdnsDomains []string, overrideGateway bool) error {
	p.iface = iface
	all := domains
	if !overrideGateway {
		all = append(append([]string{}, domains...), revdnsDomains...)
	}
	domainArgv := append([]string{resolvectlPath, "domain", iface}, all...)
	if err := privilege.RunAsRoot(ctx, domainArgv, nil); err != nil {
		return trace.Wrap(err)
	}
	if err := privilege.RunAsRoot(ctx, []string{resolvectlPath, "default-route", iface, "false"}, nil); err != nil {
		return trace.Wrap(err)
	}
	dnsArgv := append([]string{resolvectlPath, "dns", iface}, servers...)
	if err := privilege.RunAsRoot(ctx, dnsArgv, nil); err != nil {
		return trace.Wrap(err)
	}
	if err := privilege.RunAsRoot(ctx, []string{resolvectlPath, "domain", iface, "~."}, nil); err != nil {
		return trace.Wrap(err)
	}
	return nil
}

func (p *linuxSystemdResolved) TeardownDNS(ctx context.Context) error {
	if p.iface == "" {
		return nil
	}
	privilege.RunAsRootTolerant(ctx, []string{resolvectlPath, "domain", p.iface}, nil)
	privilege.RunAsRootTolerant(ctx, []string{resolvectlPath, "dns", p.iface}, nil)
	return nil
}
