package orchestrator

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/kj54321/f5vpn-login/lib/gatewayproto"
)

type fakeGateway struct {
	favoritesBySession map[string][]gatewayproto.Favorite
	loginSessions      []string
	loginErrs          []error
	loginCalls         int
}

func (f *fakeGateway) Login(ctx context.Context, username, password, dpassword string) (string, error) {
	i := f.loginCalls
	f.loginCalls++
	var err error
	if i < len(f.loginErrs) {
		err = f.loginErrs[i]
	}
	var session string
	if i < len(f.loginSessions) {
		session = f.loginSessions[i]
	}
	return session, err
}

func (f *fakeGateway) ListFavorites(ctx context.Context, session string) ([]gatewayproto.Favorite, error) {
	favs, ok := f.favoritesBySession[session]
	if !ok {
		return nil, nil // stale session, per gatewayproto.Client.ListFavorites's contract
	}
	return favs, nil
}

func (f *fakeGateway) FetchParams(ctx context.Context, session, favoriteID string) (gatewayproto.TunnelParams, error) {
	return gatewayproto.TunnelParams{"tunnel_host0": "gw", "tunnel_port0": "443", "Session_ID": session}, nil
}

func testOrchestrator() *Orchestrator {
	return &Orchestrator{
		Log: logrus.WithField("component", "orchestrator_test"),
	}
}

func TestEstablishSessionReusesFreshCachedSession(t *testing.T) {
	o := testOrchestrator()
	gw := &fakeGateway{favoritesBySession: map[string][]gatewayproto.Favorite{
		"S0": {{ID: "Z=a,b", Name: "Net"}},
	}}

	sessionID, favs, err := o.establishSession(context.Background(), gw, "me", "S0", true, Options{})
	require.NoError(t, err)
	require.Equal(t, "S0", sessionID)
	require.Len(t, favs, 1)
	require.Equal(t, 0, gw.loginCalls)
}

func TestEstablishSessionFallsThroughOnStaleCachedSession(t *testing.T) {
	o := testOrchestrator()
	o.PasswordPrompt = func(out io.Writer, prompt string) (string, error) { return "secret", nil }
	gw := &fakeGateway{
		favoritesBySession: map[string][]gatewayproto.Favorite{
			"S1": {{ID: "Z=a,b", Name: "Net"}},
		},
		loginSessions: []string{"S1"},
	}

	var stdout bytes.Buffer
	sessionID, favs, err := o.establishSession(context.Background(), gw, "me", "S0_stale", true, Options{Stdout: &stdout})
	require.NoError(t, err)
	require.Equal(t, "S1", sessionID)
	require.Len(t, favs, 1)
	require.Equal(t, 1, gw.loginCalls)
}

func TestEstablishSessionPromptsWhenNoCachedSession(t *testing.T) {
	o := testOrchestrator()
	o.PasswordPrompt = func(out io.Writer, prompt string) (string, error) { return "secret", nil }
	gw := &fakeGateway{
		favoritesBySession: map[string][]gatewayproto.Favorite{"S1": {{ID: "1", Name: "Net"}}},
		loginSessions:      []string{"S1"},
	}

	var stdout bytes.Buffer
	sessionID, _, err := o.establishSession(context.Background(), gw, "me", "", false, Options{Stdout: &stdout})
	require.NoError(t, err)
	require.Equal(t, "S1", sessionID)
}

func TestEstablishSessionReturnsAuthErrorWithoutRetrying(t *testing.T) {
	o := testOrchestrator()
	o.PasswordPrompt = func(out io.Writer, prompt string) (string, error) { return "wrong", nil }
	gw := &fakeGateway{loginErrs: []error{gatewayproto.ErrAuth{}}}

	var stdout bytes.Buffer
	_, _, err := o.establishSession(context.Background(), gw, "me", "", false, Options{Stdout: &stdout})
	require.Error(t, err)
	require.Equal(t, 3, ExitCode(err))
	require.Equal(t, 1, gw.loginCalls)
}

func TestEstablishSessionRetriesOnChallengeRequired(t *testing.T) {
	o := testOrchestrator()
	o.PasswordPrompt = func(out io.Writer, prompt string) (string, error) { return "secret", nil }
	gw := &fakeGateway{
		favoritesBySession: map[string][]gatewayproto.Favorite{"S1": {{ID: "1", Name: "Net"}}},
		loginErrs:          []error{&gatewayproto.ErrChallengeRequired{Text: "Challenge: enter the code from your token"}, nil},
		loginSessions:      []string{"", "S1"},
	}

	var stdout, stderr bytes.Buffer
	sessionID, _, err := o.establishSession(context.Background(), gw, "me", "", false, Options{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)
	require.Equal(t, "S1", sessionID)
	require.Equal(t, 2, gw.loginCalls)
	require.Contains(t, stderr.String(), "Challenge")
}

func TestEstablishSessionRetriesWhenFreshSessionAlreadyStale(t *testing.T) {
	o := testOrchestrator()
	o.PasswordPrompt = func(out io.Writer, prompt string) (string, error) { return "secret", nil }
	gw := &fakeGateway{
		favoritesBySession: map[string][]gatewayproto.Favorite{"S2": {{ID: "1", Name: "Net"}}},
		loginSessions:      []string{"S1", "S2"},
	}

	var stdout bytes.Buffer
	sessionID, _, err := o.establishSession(context.Background(), gw, "me", "", false, Options{Stdout: &stdout})
	require.NoError(t, err)
	require.Equal(t, "S2", sessionID)
	require.Equal(t, 2, gw.loginCalls)
}
