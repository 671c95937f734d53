// Package platform implements the portable route/DNS abstraction of
// spec.md §4.D: one concrete Platform value per detected OS/DNS
// environment, constructed once at startup rather than composed at
// runtime (DESIGN NOTES "dynamic platform dispatch").
package platform

import "context"

// RouteAction is the verb passed to Platform.SetupRoute.
type RouteAction string

const (
	RouteAdd    RouteAction = "add"
	RouteDelete RouteAction = "delete"
)

// Platform adds/removes routes and installs/tears down DNS configuration
// for the lifetime of a tunnel session.
type Platform interface {
	// SetupRoute adds or deletes a route to net/bits. iface may be empty,
	// in which case gateway is used instead (spec.md §4.D).
	SetupRoute(ctx context.Context, iface, gateway string, net [4]byte, bits int, action RouteAction) error

	// SetupDNS installs iface/serviceID-scoped DNS configuration pointing
	// at servers, with domains (and revdnsDomains, when overrideGateway is
	// false) as search domains.
	SetupDNS(ctx context.Context, iface, serviceID string, servers, domains, revdnsDomains []string, overrideGateway bool) error

	// TeardownDNS restores whatever SetupDNS overwrote. Must be safe to
	// call when SetupDNS was never called (spec.md §3 invariant 3).
	TeardownDNS(ctx context.Context) error
}

// InterfaceWaiter is implemented by platforms that need to wait for the
// kernel to finish bringing an interface up before routes can be added to
// it (Linux only, spec.md §4.D).
type InterfaceWaiter interface {
	WaitForInterface(ctx context.Context, iface string) error
}
