// Package orchestrator sequences every other package in this module into
// the single end-to-end run spec.md §4.H describes: authenticate, fetch
// tunnel parameters, install routes, spawn pppd, relay bytes, and tear
// everything back down on any exit path.
package orchestrator

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/kj54321/f5vpn-login/internal/prompt"
	"github.com/kj54321/f5vpn-login/lib/gatewayproto"
	"github.com/kj54321/f5vpn-login/lib/httpclient"
	"github.com/kj54321/f5vpn-login/lib/logwatcher"
	"github.com/kj54321/f5vpn-login/lib/platform"
	"github.com/kj54321/f5vpn-login/lib/pppd"
	"github.com/kj54321/f5vpn-login/lib/relay"
	"github.com/kj54321/f5vpn-login/lib/routespec"
	"github.com/kj54321/f5vpn-login/lib/session"
)

// customRoutes are added through the tunnel interface when --custom-routes
// is set, on top of whatever LAN0 carries (spec.md §4.H step 9).
var customRoutes = []string{"100.64.0.0/10", "10.0.0.0/8"}

// maxTunnelDialAttempts bounds the retry loop around the initial VPN data
// GET (spec.md §4.H step 8, §7).
const maxTunnelDialAttempts = 5

// gatewayClient is the subset of *gatewayproto.Client Run needs, narrowed
// so tests can substitute a mock gateway.
type gatewayClient interface {
	Login(ctx context.Context, username, password, dpassword string) (string, error)
	ListFavorites(ctx context.Context, session string) ([]gatewayproto.Favorite, error)
	FetchParams(ctx context.Context, session, favoriteID string) (gatewayproto.TunnelParams, error)
}

// Orchestrator holds the long-lived collaborators Run threads through the
// whole sequence -- no package-level globals (spec.md §9 "global mutable
// state").
type Orchestrator struct {
	Cache    *session.Cache
	Platform platform.Platform
	Clock    clockwork.Clock
	Log      *logrus.Entry

	// GOOS selects pppd's serviceid argument; overridable in tests.
	GOOS string

	// NewGatewayClient constructs the gateway protocol client for a host;
	// overridable in tests to inject a mock gateway.
	NewGatewayClient func(host string, proxy httpclient.Proxy, verifyCert bool) gatewayClient

	// PasswordPrompt reads a credential with echo disabled; overridable in
	// tests to avoid touching a real terminal.
	PasswordPrompt func(out io.Writer, prompt string) (string, error)

	// DetectDefaultRoute finds the host's current default gateway/iface;
	// overridable in tests.
	DetectDefaultRoute func() (defaultRoute, error)
}

// New builds an Orchestrator wired to the real OS: the detected platform,
// the on-disk session cache, the real clock, and the real gateway
// protocol client.
func New() (*Orchestrator, error) {
	p, err := platform.Detect()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &Orchestrator{
		Cache:    session.NewCache(),
		Platform: p,
		Clock:    clockwork.NewRealClock(),
		Log:      logrus.WithField("component", "orchestrator"),
		GOOS:     runtime.GOOS,
		NewGatewayClient: func(host string, proxy httpclient.Proxy, verifyCert bool) gatewayClient {
			return gatewayproto.NewClient(host, proxy, verifyCert)
		},
		PasswordPrompt:     prompt.Password,
		DetectDefaultRoute: detectDefaultRoute,
	}, nil
}

// Run performs the full login-to-teardown sequence described by spec.md
// §4.H. It returns nil only after a graceful teardown; any non-nil error
// has already been through teardown as well (spec.md §7: "any exception
// during the relay loop triggers the full teardown sequence before
// propagating").
func (o *Orchestrator) Run(ctx context.Context, opts Options) error {
	if err := dropPrivileges(); err != nil {
		return trace.Wrap(err)
	}

	cached := o.Cache.Load()
	cachedSessionIfFresh := cached.Session
	if !o.Cache.Fresh(cached) {
		cachedSessionIfFresh = ""
	}
	userHost, cachedSession, err := resolveUserHost(opts.Arg, cached.UserHost, cachedSessionIfFresh)
	if err != nil {
		return trace.Wrap(err)
	}
	username, host := splitUserHost(userHost)

	if opts.SessionIDOverride != "" {
		cachedSession = opts.SessionIDOverride
	}

	gw := o.NewGatewayClient(host, opts.Proxy, opts.VerifyCert)

	sessionID, favs, err := o.establishSession(ctx, gw, username, cachedSession, cached.UserHost == userHost || opts.SessionIDOverride != "", opts)
	if err != nil {
		return trace.Wrap(err)
	}

	fav, err := gatewayproto.SelectFavorite(favs, opts.Stdin, opts.Stdout)
	if err != nil {
		return trace.Wrap(err)
	}

	params, err := gw.FetchParams(ctx, sessionID, fav.ID)
	if err != nil {
		return trace.Wrap(err)
	}
	if params == nil {
		return trace.Wrap(&ErrParamsUnavailable{FavoriteID: fav.ID})
	}

	if err := o.Cache.Save(userHost, sessionID); err != nil {
		o.Log.WithError(err).Warn("failed to persist session cache")
	}

	return o.runTunnel(ctx, params, opts)
}

// establishSession implements spec.md §4.H steps 3/4: try the cached
// session first when one exists, falling through to an interactive
// login loop that repeats until a session is obtained or a hard auth
// failure occurs.
func (o *Orchestrator) establishSession(ctx context.Context, gw gatewayClient, username, cachedSession string, sameHost bool, opts Options) (string, []gatewayproto.Favorite, error) {
	if sameHost && cachedSession != "" {
		favs, err := gw.ListFavorites(ctx, cachedSession)
		if err != nil {
			return "", nil, trace.Wrap(err)
		}
		if favs != nil {
			return cachedSession, favs, nil
		}
		o.Log.Info("cached session is stale, falling through to login")
	}

	for {
		if username == "" {
			u, err := o.PasswordPrompt(opts.Stdout, "Username: ")
			if err != nil {
				return "", nil, trace.Wrap(err)
			}
			username = u
		}
		password, err := o.PasswordPrompt(opts.Stdout, "RADIUS password: ")
		if err != nil {
			return "", nil, trace.Wrap(err)
		}
		dpassword, err := o.PasswordPrompt(opts.Stdout, "LAN password: ")
		if err != nil {
			return "", nil, trace.Wrap(err)
		}

		newSession, err := gw.Login(ctx, username, password, dpassword)
		if err != nil {
			var challenge *gatewayproto.ErrChallengeRequired
			if errors.As(err, &challenge) {
				fmt.Fprintln(opts.Stderr, challenge.Error())
				continue
			}
			return "", nil, trace.Wrap(err)
		}

		favs, err := gw.ListFavorites(ctx, newSession)
		if err != nil {
			return "", nil, trace.Wrap(err)
		}
		if favs == nil {
			o.Log.Info("newly acquired session already stale, retrying login")
			continue
		}
		return newSession, favs, nil
	}
}

// runTunnel implements spec.md §4.H steps 7-10: open the data channel,
// install the host route, spawn pppd, relay bytes, and unwind everything
// on the way out regardless of how the loop ended.
func (o *Orchestrator) runTunnel(ctx context.Context, params gatewayproto.TunnelParams, opts Options) error {
	tunnelHost, err := params.TunnelHost()
	if err != nil {
		return trace.Wrap(err)
	}
	tunnelPort, err := params.TunnelPort()
	if err != nil {
		return trace.Wrap(err)
	}
	sessionID, err := params.SessionID()
	if err != nil {
		return trace.Wrap(err)
	}

	// The VPN data channel is opened first, exactly as the original does:
	// the host route installed next targets the IP the connection actually
	// landed on, not a fresh (and possibly round-robin-different) lookup.
	tlsConn, err := o.dialTunnelDataChannel(ctx, net.JoinHostPort(tunnelHost, fmt.Sprintf("%d", tunnelPort)), sessionID, opts.Proxy, opts.VerifyCert)
	if err != nil {
		return trace.Wrap(err)
	}
	defer tlsConn.Close()

	tunnelIP, _, err := net.SplitHostPort(tlsConn.RemoteAddr().String())
	if err != nil {
		return trace.Wrap(err)
	}

	// We need to first add an explicit route for the VPN server through the
	// *current* default gateway; pppd will install the new default gateway
	// itself once it's up (spec.md §4.H step 7).
	route, err := o.DetectDefaultRoute()
	if err != nil {
		return trace.Wrap(err)
	}
	hostRoute := routespec.RouteSpec{Net: parseIPv4(tunnelIP), Bits: 32}

	o.Platform.SetupRoute(ctx, route.Interface, route.GatewayIP, hostRoute.Net, hostRoute.Bits, platform.RouteDelete)
	if err := o.Platform.SetupRoute(ctx, route.Interface, route.GatewayIP, hostRoute.Net, hostRoute.Bits, platform.RouteAdd); err != nil {
		return trace.Wrap(err, "installing host route to %s", tunnelHost)
	}
	defer o.Platform.SetupRoute(context.Background(), route.Interface, route.GatewayIP, hostRoute.Net, hostRoute.Bits, platform.RouteDelete)

	sup, ptyMaster, logPipe, err := pppd.Spawn(ctx, pppd.SpawnOptions{
		OverrideGateway: true,
		ServiceID:       pppd.ServiceID(tunnelHost),
		GOOS:            o.GOOS,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	defer ptyMaster.Close()
	defer logPipe.Close()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := sup.Shutdown(shutdownCtx); err != nil {
			o.Log.WithError(err).Warn("pppd shutdown did not complete cleanly")
		}
	}()

	ipUpErrCh := make(chan error, 1)
	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	// applyIPUp needs to arm the keep-alive on the *relay.Loop constructed
	// below, but the watcher it's registered on must exist before the loop
	// does. loopRef is filled in once the loop is built; the watcher is fed
	// only from inside loop.Run, so the callback never runs before
	// NewLoop has returned and loopRef has been set.
	var loopRef *relay.Loop
	watcher := logwatcher.NewWatcher(func(iface, tty, localIP, remoteIP string) {
		if err := o.applyIPUp(loopCtx, iface, localIP, loopRef, params, opts); err != nil {
			ipUpErrCh <- err
			cancelLoop()
			return
		}
		ipUpErrCh <- nil
	})
	defer o.Platform.TeardownDNS(context.Background())

	loop, err := relay.NewLoop(ptyMaster, logPipe, relay.NewTLSConn(tlsConn, 200*time.Millisecond), watcher, o.Clock)
	if err != nil {
		return trace.Wrap(err)
	}
	loopRef = loop
	go loop.WatchDiagnosticSignal(loopCtx)

	runErr := loop.Run(loopCtx)
	select {
	case ipUpErr := <-ipUpErrCh:
		if ipUpErr != nil {
			return trace.Wrap(ipUpErr)
		}
	default:
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return trace.Wrap(runErr)
	}
	return nil
}

// applyIPUp is the ip-up callback body from spec.md §4.H step 9: apply
// every LAN0 route, arm the keep-alive to the local PTY IP, install DNS
// unless skipped, and (with --custom-routes) add the two CGNAT/RFC1918
// catch-all routes on top.
func (o *Orchestrator) applyIPUp(ctx context.Context, iface, localIP string, loop *relay.Loop, params gatewayproto.TunnelParams, opts Options) error {
	var revdns []string
	if lanRoutes := params.LANRoutes(); len(lanRoutes) > 0 && !opts.SkipRoutes {
		if waiter, ok := o.Platform.(platform.InterfaceWaiter); ok {
			if err := waiter.WaitForInterface(ctx, iface); err != nil {
				return trace.Wrap(err)
			}
		}
		for _, s := range lanRoutes {
			rs, err := routespec.Parse(s)
			if err != nil {
				return trace.Wrap(err)
			}
			if err := o.Platform.SetupRoute(ctx, iface, localIP, rs.Net, rs.Bits, platform.RouteAdd); err != nil {
				return trace.Wrap(err, "installing route %s", rs)
			}
			revdns = append(revdns, rs.ReverseZones()...)
		}
	}

	sender, err := relay.DialKeepAlive(localIP)
	if err != nil {
		return trace.Wrap(err, "arming keepalive")
	}
	loop.ArmKeepAlive(sender)

	if len(params.DNSServers()) > 0 && !opts.SkipDNS {
		serviceID := pppd.ServiceID(mustTunnelHost(params))
		if err := o.Platform.SetupDNS(ctx, iface, serviceID, params.DNSServers(), params.DNSSuffixes(), revdns, true); err != nil {
			return trace.Wrap(err, "installing dns")
		}
	}

	if opts.CustomRoutes {
		for _, s := range customRoutes {
			rs, err := routespec.Parse(s)
			if err != nil {
				return trace.Wrap(err)
			}
			if err := o.Platform.SetupRoute(ctx, iface, localIP, rs.Net, rs.Bits, platform.RouteAdd); err != nil {
				return trace.Wrap(err, "installing custom route %s", rs)
			}
		}
	}
	return nil
}

func mustTunnelHost(params gatewayproto.TunnelParams) string {
	host, _ := params.TunnelHost()
	return host
}

// dialTunnelDataChannel implements spec.md §4.H step 8: open a fresh TLS
// socket, send the GET, and discard the single sync byte, making up to
// maxTunnelDialAttempts attempts in all while each one fails with an
// EOF-violation TLS error.
func (o *Orchestrator) dialTunnelDataChannel(ctx context.Context, hostPort, sessionID string, proxy httpclient.Proxy, verifyCert bool) (*tls.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < maxTunnelDialAttempts; attempt++ {
		conn, err := o.tryDialDataChannel(ctx, hostPort, sessionID, proxy, verifyCert)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if !httpclient.IsEOFViolation(err) {
			return nil, trace.Wrap(err)
		}
		o.Log.WithError(err).Warn("tunnel data channel EOF violation, retrying")
	}
	return nil, trace.Wrap(lastErr, "exhausted tunnel dial retries")
}

func (o *Orchestrator) tryDialDataChannel(ctx context.Context, hostPort, sessionID string, proxy httpclient.Proxy, verifyCert bool) (*tls.Conn, error) {
	client := httpclient.NewClient(proxy)
	client.InsecureSkipVerify = !verifyCert
	conn, err := client.DialTLS(ctx, hostPort)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	req := fmt.Sprintf("GET /myvpn?sess=%s HTTP/1.0\r\nCookie: MRHSession=%s\r\n\r\n", sessionID, sessionID)
	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, trace.Wrap(&httpclient.TLSError{Err: err})
	}
	sync := make([]byte, 1)
	if _, err := io.ReadFull(conn, sync); err != nil {
		conn.Close()
		return nil, trace.Wrap(&httpclient.TLSError{Err: err})
	}
	return conn, nil
}

func parseIPv4(ip string) [4]byte {
	parsed := net.ParseIP(ip).To4()
	var out [4]byte
	copy(out[:], parsed)
	return out
}

// dropPrivileges implements spec.md §4.H step 1: refuse to run unless
// started as root, then immediately drop the effective uid to the real
// uid so the rest of the process runs unprivileged until lib/privilege
// scopes elevation back in around specific operations.
func dropPrivileges() error {
	if unix.Geteuid() != 0 {
		return trace.AccessDenied("this program must be started as root (or setuid root)")
	}
	return trace.Wrap(unix.Seteuid(unix.Getuid()))
}
