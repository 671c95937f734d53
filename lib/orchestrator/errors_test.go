package orchestrator

import (
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"

	"github.com/kj54321/f5vpn-login/lib/gatewayproto"
)

func TestExitCodeNil(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
}

func TestExitCodeAuth(t *testing.T) {
	require.Equal(t, 3, ExitCode(trace.Wrap(gatewayproto.ErrAuth{})))
}

func TestExitCodeMissingParam(t *testing.T) {
	require.Equal(t, 2, ExitCode(trace.Wrap(&gatewayproto.ErrMissingParam{Key: "tunnel_host0"})))
}

func TestExitCodeParamsUnavailable(t *testing.T) {
	require.Equal(t, 2, ExitCode(trace.Wrap(&ErrParamsUnavailable{FavoriteID: "Net"})))
}

func TestExitCodeUnknown(t *testing.T) {
	require.Equal(t, 1, ExitCode(trace.BadParameter("boom")))
}
