package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveUserHostPrefersExplicitArg(t *testing.T) {
	userHost, session, err := resolveUserHost("me@gw.example.com", "", "")
	require.NoError(t, err)
	require.Equal(t, "me@gw.example.com", userHost)
	require.Empty(t, session)
}

func TestResolveUserHostReusesCacheWhenArgOmitted(t *testing.T) {
	userHost, session, err := resolveUserHost("", "me@gw.example.com", "S1")
	require.NoError(t, err)
	require.Equal(t, "me@gw.example.com", userHost)
	require.Equal(t, "S1", session)
}

func TestResolveUserHostSwitchingHostDropsCachedSession(t *testing.T) {
	userHost, session, err := resolveUserHost("me@other.example.com", "me@gw.example.com", "S1")
	require.NoError(t, err)
	require.Equal(t, "me@other.example.com", userHost)
	require.Empty(t, session)
}

func TestResolveUserHostSameArgKeepsCachedSession(t *testing.T) {
	userHost, session, err := resolveUserHost("me@gw.example.com", "me@gw.example.com", "S1")
	require.NoError(t, err)
	require.Equal(t, "me@gw.example.com", userHost)
	require.Equal(t, "S1", session)
}

func TestResolveUserHostErrorsWhenNeverProvided(t *testing.T) {
	_, _, err := resolveUserHost("", "", "")
	require.Error(t, err)
}

func TestSplitUserHost(t *testing.T) {
	user, host := splitUserHost("me@gw.example.com")
	require.Equal(t, "me", user)
	require.Equal(t, "gw.example.com", host)

	user, host = splitUserHost("gw.example.com")
	require.Empty(t, user)
	require.Equal(t, "gw.example.com", host)
}
