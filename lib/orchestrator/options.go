package orchestrator

import (
	"io"

	"github.com/kj54321/f5vpn-login/lib/httpclient"
)

// Options collects everything the CLI layer parses out of argv (spec.md
// §6) before handing control to Run.
type Options struct {
	// Arg is the CLI's positional [user@]host argument. May be empty if a
	// cached user@host already exists.
	Arg string

	// SessionIDOverride corresponds to --sessionid: skip the cached
	// session entirely and try this one first.
	SessionIDOverride string

	SkipDNS      bool
	SkipRoutes   bool
	CustomRoutes bool

	Proxy httpclient.Proxy

	// VerifyCert opts into real TLS certificate verification against the
	// gateway, overriding the historical insecure default (spec.md §9).
	VerifyCert bool

	// Stdin/Stdout/Stderr back the password prompts and favorite menu;
	// defaulted to the real os.Std* by the CLI, substituted in tests.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}
