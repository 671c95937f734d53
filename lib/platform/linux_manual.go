//go:build linux

package platform

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/gravitational/trace"

	"github.com/kj54321/f5vpn-login/lib/privilege"
)

// linuxManual rewrites /etc/resolv.conf directly, the fallback DNS backend
// used when neither resolvectl nor resolvconf is present (spec.md §4.D).
type linuxManual struct {
	path          string
	backupPath    string
	installedMtime time.Time
}

func newLinuxManual(path string) *linuxManual {
	return &linuxManual{path: path, backupPath: path + ".f5_bak"}
}

func (p *linuxManual) SetupRoute(ctx context.Context, iface, gateway string, net [4]byte, bits int, action RouteAction) error {
	return linuxSetupRoute(ctx, iface, gateway, net, bits, action)
}

func (p *linuxManual) WaitForInterface(ctx context.Context, iface string) error {
	return linuxWaitForInterface(ctx, iface)
}

// resolvConf is the parsed shape of an existing /etc/resolv.conf: the
// search-or-domain line's argument list, the nameserver entries, and every
// other line verbatim and in order.
type resolvConf struct {
	search      []string
	nameservers []string
	rest        []string
}

func parseResolvConf(data []byte) resolvConf {
	var out resolvConf
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		switch {
		case len(fields) >= 1 && (fields[0] == "search" || fields[0] == "domain"):
			out.search = append(out.search, fields[1:]...)
		case len(fields) == 2 && fields[0] == "nameserver":
			out.nameservers = append(out.nameservers, fields[1])
		default:
			out.rest = append(out.rest, line)
		}
	}
	return out
}

// buildResolvConf renders the replacement file: a single search line with
// newDomains ahead of the old search domains, then the new nameservers,
// then the old nameservers, then the untouched remainder (spec.md §4.D).
func buildResolvConf(newDomains, newServers []string, old resolvConf) string {
	var b strings.Builder
	b.WriteString("search " + strings.Join(append(append([]string{}, newDomains...), old.search...), " ") + "\n")
	for _, s := range newServers {
		b.WriteString("nameserver " + s + "\n")
	}
	for _, s := range old.nameservers {
		b.WriteString("nameserver " + s + "\n")
	}
	for _, line := range old.rest {
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (p *linuxManual) SetupDNS(ctx context.Context, iface, serviceID string, servers, domains, revdnsDomains []string, overrideGateway bool) error {
	all := domains
	if !overrideGateway {
		all = append(append([]string{}, domains...), revdnsDomains...)
	}
	return privilege.Elevated(func() error {
		return p.installResolvConf(all, servers)
	})
}

// installResolvConf does the actual rewrite-and-backup. Split out of
// SetupDNS so it can be exercised by tests without needing real root.
func (p *linuxManual) installResolvConf(domains, servers []string) error {
	existing, err := os.ReadFile(p.path)
	if err != nil && !os.IsNotExist(err) {
		return trace.Wrap(err)
	}
	old := parseResolvConf(existing)
	replacement := buildResolvConf(domains, servers, old)

	if err == nil {
		if err := os.Rename(p.path, p.backupPath); err != nil {
			return trace.Wrap(err)
		}
	}
	if err := os.WriteFile(p.path, []byte(replacement), 0644); err != nil {
		return trace.Wrap(err)
	}
	info, err := os.Stat(p.path)
	if err != nil {
		return trace.Wrap(err)
	}
	p.installedMtime = info.ModTime()
	return nil
}

// TeardownDNS restores the backup only if the live file's mtime still
// matches the one recorded at install time -- someone else rewriting
// resolv.conf in between means it's no longer ours to touch, so the
// backup is discarded instead (spec.md §3 invariant 3).
func (p *linuxManual) TeardownDNS(ctx context.Context) error {
	if p.installedMtime.IsZero() {
		return nil
	}
	return privilege.Elevated(func() error {
		p.restoreOrDiscardBackup()
		return nil
	})
}

func (p *linuxManual) restoreOrDiscardBackup() {
	info, err := os.Stat(p.path)
	if err == nil && info.ModTime().Equal(p.installedMtime) {
		_ = os.Rename(p.backupPath, p.path)
	} else {
		_ = os.Remove(p.backupPath)
	}
}
