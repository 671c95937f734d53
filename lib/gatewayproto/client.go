package gatewayproto

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"

	"github.com/kj54321/f5vpn-login/lib/httpclient"
)

// sender is the subset of *httpclient.Client this package needs, so tests
// can substitute a fake gateway without opening real sockets.
type sender interface {
	SendRequest(ctx context.Context, host, requestText string) (string, error)
}

// Client drives the login and favorite-selection protocol against one
// gateway host.
type Client struct {
	Host string
	HTTP sender
	Log  *logrus.Entry
}

// NewClient builds a Client using a real httpclient.Client configured with
// the given proxy. verifyCert opts into real TLS certificate verification,
// overriding the package's historical "don't bother" default (spec.md §9).
func NewClient(host string, proxy httpclient.Proxy, verifyCert bool) *Client {
	http := httpclient.NewClient(proxy)
	http.InsecureSkipVerify = !verifyCert
	return &Client{
		Host: host,
		HTTP: http,
		Log:  logrus.WithField("component", "gatewayproto"),
	}
}

var (
	clientDataJSPattern  = regexp.MustCompile(`document\.external_data_post_cls\.client_data\.value = "([\w=]+)"`)
	clientDataHTMLPattern = regexp.MustCompile(`name="client_data" value="([\w=]+)"`)
	setCookiePattern     = regexp.MustCompile(`(?m)^Set-Cookie: MRHSession=([^;]*);`)
	authFailurePattern   = "Either Username or Password do not match!"
	challengePattern     = regexp.MustCompile(`(Challenge: [^<]*)`)
)

// Preflight scans /my.logon.php3?check=1 for the client_data token some
// gateways require echoed back into the login POST.
func (c *Client) Preflight(ctx context.Context) (string, error) {
	resp, err := c.HTTP.SendRequest(ctx, c.Host, preflightRequest(c.Host))
	if err != nil {
		return "", trace.Wrap(err)
	}
	if m := clientDataJSPattern.FindStringSubmatch(resp); m != nil {
		return m[1], nil
	}
	if m := clientDataHTMLPattern.FindStringSubmatch(resp); m != nil {
		return m[1], nil
	}
	return "", nil
}

// Login performs the full preflight+POST login sequence and returns the
// session cookie (spec.md §4.B item 2).
func (c *Client) Login(ctx context.Context, username, password, dpassword string) (string, error) {
	clientData, err := c.Preflight(ctx)
	if err != nil {
		return "", trace.Wrap(err)
	}

	resp, err := c.HTTP.SendRequest(ctx, c.Host, loginRequest(c.Host, username, password, dpassword, clientData))
	if err != nil {
		return "", trace.Wrap(err)
	}

	var session string
	for _, m := range setCookiePattern.FindAllStringSubmatch(resp, -1) {
		if m[1] != "deleted" {
			session = m[1]
		}
	}
	if session != "" {
		return session, nil
	}

	if strings.Contains(resp, authFailurePattern) {
		return "", trace.Wrap(ErrAuth{})
	}
	if m := challengePattern.FindStringSubmatch(resp); m != nil {
		return "", trace.Wrap(&ErrChallengeRequired{Text: m[1]})
	}
	return "", trace.Wrap(&ErrUnknownLoginResponse{Body: resp})
}

// ListFavorites returns the VPN favorites visible under session. Returns
// (nil, nil) if the gateway reports the session as stale rather than an
// error, matching spec.md §4.B item 3's "fall through to re-login"
// contract.
func (c *Client) ListFavorites(ctx context.Context, session string) ([]Favorite, error) {
	resp, err := c.HTTP.SendRequest(ctx, c.Host, favoritesRequest(c.Host, session))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	favs, err := parseFavorites(resp)
	var stale ErrStaleSession
	if errors.As(err, &stale) {
		return nil, nil
	}
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return favs, nil
}

// FetchParams retrieves the tunnel parameters for favoriteID. Returns
// (nil, nil) on a stale session, per spec.md §4.B item 4.
func (c *Client) FetchParams(ctx context.Context, session, favoriteID string) (TunnelParams, error) {
	resp, err := c.HTTP.SendRequest(ctx, c.Host, paramsRequest(c.Host, session, favoriteID))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	params, err := parseTunnelParams(resp)
	var stale ErrStaleSession
	if errors.As(err, &stale) {
		return nil, nil
	}
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return params, nil
}
