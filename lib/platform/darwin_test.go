//go:build darwin

package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScutilScriptFitsUnderLimit(t *testing.T) {
	require.True(t, scutilScriptFits([]string{"1.10.in-addr.arpa", "2.10.in-addr.arpa"}))
}

func TestScutilScriptFitsRejectsOversizedZoneList(t *testing.T) {
	zones := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		zones = append(zones, "123.456.789.in-addr.arpa")
	}
	require.False(t, scutilScriptFits(zones))
}

func TestBuildScutilSetupScriptOverrideGatewayUsesSearchDomains(t *testing.T) {
	script := buildScutilSetupScript("f5vpn-gw", []string{"10.8.0.53"}, []string{"corp.local"}, []string{"1.10.in-addr.arpa"}, true)
	require.Contains(t, script, "d.add ServerAddresses * 10.8.0.53\n")
	require.Contains(t, script, "d.add SearchDomains * corp.local\n")
	require.NotContains(t, script, "SupplementalMatchDomains")
	require.Contains(t, script, "set State:/Network/Service/f5vpn-gw/DNS\n")
}

func TestBuildScutilSetupScriptNonOverrideIncludesRevdnsWhenItFits(t *testing.T) {
	script := buildScutilSetupScript("f5vpn-gw", []string{"10.8.0.53"}, []string{"corp.local"}, []string{"1.10.in-addr.arpa"}, false)
	require.Contains(t, script, "d.add SupplementalMatchDomains * corp.local 1.10.in-addr.arpa\n")
}

func TestBuildScutilSetupScriptOmitsRevdnsWhenOversized(t *testing.T) {
	var zones []string
	for i := 0; i < 60; i++ {
		zones = append(zones, "123.456.789.in-addr.arpa")
	}
	script := buildScutilSetupScript("f5vpn-gw", []string{"10.8.0.53"}, []string{"corp.local"}, zones, false)
	require.Contains(t, script, "d.add SupplementalMatchDomains * corp.local\n")
	require.False(t, strings.Contains(script, "in-addr.arpa"))
}

func TestBuildScutilTeardownScript(t *testing.T) {
	require.Equal(t, "open\nremove State:/Network/Service/f5vpn-gw/DNS\nclose\n", buildScutilTeardownScript("f5vpn-gw"))
}
