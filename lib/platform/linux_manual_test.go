//go:build linux

package platform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseResolvConf(t *testing.T) {
	data := []byte("search corp.local\nnameserver 10.0.0.1\nnameserver 10.0.0.2\noptions rotate\n")
	rc := parseResolvConf(data)
	require.Equal(t, []string{"corp.local"}, rc.search)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, rc.nameservers)
	require.Equal(t, []string{"options rotate"}, rc.rest)
}

func TestParseResolvConfDomainKeyword(t *testing.T) {
	rc := parseResolvConf([]byte("domain example.com\n"))
	require.Equal(t, []string{"example.com"}, rc.search)
}

func TestBuildResolvConfOrdering(t *testing.T) {
	old := resolvConf{
		search:      []string{"corp.local"},
		nameservers: []string{"10.0.0.1"},
		rest:        []string{"options rotate"},
	}
	out := buildResolvConf([]string{"tun.corp"}, []string{"10.8.0.53"}, old)
	require.Equal(t, "search tun.corp corp.local\nnameserver 10.8.0.53\nnameserver 10.0.0.1\noptions rotate\n", out)
}

func TestLinuxManualTeardownRestoresOnMatchingMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("search corp.local\nnameserver 10.0.0.1\n"), 0644))

	p := newLinuxManual(path)
	require.NoError(t, p.installResolvConf([]string{"tun.corp"}, []string{"10.8.0.53"}))

	installed, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(installed), "tun.corp")
	_, err = os.Stat(p.backupPath)
	require.NoError(t, err)

	p.restoreOrDiscardBackup()
	restored, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "search corp.local\nnameserver 10.0.0.1\n", string(restored))
	_, err = os.Stat(p.backupPath)
	require.True(t, os.IsNotExist(err))
}

func TestLinuxManualTeardownSkipsWhenNeverInstalled(t *testing.T) {
	p := newLinuxManual(filepath.Join(t.TempDir(), "resolv.conf"))
	require.True(t, p.installedMtime.Equal(time.Time{}))
	require.NoError(t, p.TeardownDNS(nil))
}

func TestLinuxManualTeardownDiscardsBackupWhenFileChangedSince(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("nameserver 10.0.0.1\n"), 0644))

	p := newLinuxManual(path)
	require.NoError(t, p.installResolvConf([]string{"tun.corp"}, []string{"10.8.0.53"}))

	// Something else rewrote the file after we installed ours.
	require.NoError(t, os.WriteFile(path, []byte("nameserver 192.0.2.1\n"), 0644))

	p.restoreOrDiscardBackup()
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "nameserver 192.0.2.1\n", string(current))
	_, err = os.Stat(p.backupPath)
	require.True(t, os.IsNotExist(err))
}
