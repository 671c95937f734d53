package orchestrator

import (
	"strings"

	"github.com/gravitational/trace"
)

// resolveUserHost reconciles the CLI's positional [user@]host argument
// with whatever was cached on disk: an explicit argument always wins,
// and switching to a different user@host invalidates any cached session
// (spec.md §4.H step 2/3).
func resolveUserHost(arg, cachedUserHost, cachedSession string) (userHost, session string, err error) {
	userHost = cachedUserHost
	session = cachedSession

	if arg != "" {
		if arg != cachedUserHost {
			session = ""
		}
		userHost = arg
	}

	if userHost == "" {
		return "", "", trace.BadParameter("the host argument must be provided the first time")
	}
	return userHost, session, nil
}

// splitUserHost splits "user@host" into its parts; host alone is
// returned verbatim with an empty user.
func splitUserHost(userHost string) (user, host string) {
	if idx := strings.IndexByte(userHost, '@'); idx >= 0 {
		return userHost[:idx], userHost[idx+1:]
	}
	return "", userHost
}
