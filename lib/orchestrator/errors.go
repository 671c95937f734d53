package orchestrator

import (
	"errors"

	"github.com/kj54321/f5vpn-login/lib/gatewayproto"
)

// ErrParamsUnavailable indicates the gateway returned no tunnel parameters
// for the selected favorite because it reported the session as stale; Run
// does not log in again at that point (spec.md §6, exit code 2).
type ErrParamsUnavailable struct {
	FavoriteID string
}

func (e *ErrParamsUnavailable) Error() string {
	return "tunnel parameters unavailable for favorite " + e.FavoriteID
}

// ExitCode maps a Run error to the process exit code spec.md §6 defines:
// 0 normal, 1 unknown fatal, 2 tunnel params unavailable, 3 bad
// credentials.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var auth gatewayproto.ErrAuth
	if errors.As(err, &auth) {
		return 3
	}
	var missing *gatewayproto.ErrMissingParam
	if errors.As(err, &missing) {
		return 2
	}
	var unavailable *ErrParamsUnavailable
	if errors.As(err, &unavailable) {
		return 2
	}
	return 1
}
