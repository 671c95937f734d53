// Command f5vpn-login authenticates against a BIG-IP APM ("FirePass")
// gateway, negotiates a VPN tunnel, and relays traffic over it until
// interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kj54321/f5vpn-login/internal/logging"
	"github.com/kj54321/f5vpn-login/lib/httpclient"
	"github.com/kj54321/f5vpn-login/lib/orchestrator"
)

const usage = "Usage: %s [--skip-dns] [--skip-routes] [--custom-routes] [--sessionid=sessionid] [--{http,socks5}-proxy=host:port] [--verify-cert] [--debug] [[user@]host]\n"

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	flags := pflag.NewFlagSet(argv[0], pflag.ContinueOnError)
	flags.Usage = func() { fmt.Fprintf(os.Stderr, usage, argv[0]) }

	skipDNS := flags.Bool("skip-dns", false, "don't install DNS configuration for the tunnel")
	skipRoutes := flags.Bool("skip-routes", false, "don't install LAN0 split-tunnel routes")
	customRoutes := flags.Bool("custom-routes", false, "add 100.64.0.0/10 and 10.0.0.0/8 through the tunnel")
	sessionID := flags.String("sessionid", "", "reuse this session id instead of the cached one")
	httpProxy := flags.String("http-proxy", "", "HTTP CONNECT proxy, host:port")
	socks5Proxy := flags.String("socks5-proxy", "", "SOCKS5 proxy, host:port")
	verifyCert := flags.Bool("verify-cert", false, "verify the gateway's TLS certificate instead of the historical insecure default")
	debug := flags.Bool("debug", false, "enable verbose logging to stderr")

	if err := flags.Parse(argv[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		flags.Usage()
		return 1
	}

	if *httpProxy != "" && *socks5Proxy != "" {
		fmt.Fprintln(os.Stderr, "--http-proxy and --socks5-proxy are mutually exclusive")
		return 1
	}

	args := flags.Args()
	if len(args) > 1 {
		flags.Usage()
		return 1
	}

	logging.Init(*debug)

	proxy := httpclient.Proxy{}
	switch {
	case *httpProxy != "":
		proxy = httpclient.Proxy{Kind: "http", Addr: *httpProxy}
	case *socks5Proxy != "":
		proxy = httpclient.Proxy{Kind: "socks5", Addr: *socks5Proxy}
	}

	opts := orchestrator.Options{
		SessionIDOverride: *sessionID,
		SkipDNS:           *skipDNS,
		SkipRoutes:        *skipRoutes,
		CustomRoutes:      *customRoutes,
		Proxy:             proxy,
		VerifyCert:        *verifyCert,
		Stdin:             os.Stdin,
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
	}
	if len(args) == 1 {
		opts.Arg = args[0]
	}

	o, err := orchestrator.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := o.Run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return orchestrator.ExitCode(err)
	}
	return 0
}
