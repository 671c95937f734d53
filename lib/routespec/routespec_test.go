package routespec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseForms(t *testing.T) {
	cases := []struct {
		in   string
		want RouteSpec
	}{
		{"10.0.0.0/24", RouteSpec{Net: [4]byte{10, 0, 0, 0}, Bits: 24}},
		{"10.0.0.0/255.255.255.0", RouteSpec{Net: [4]byte{10, 0, 0, 0}, Bits: 24}},
		{"10.0.0.2/32", RouteSpec{Net: [4]byte{10, 0, 0, 2}, Bits: 32}},
		{"10", RouteSpec{Net: [4]byte{10, 0, 0, 0}, Bits: 8}},
		{"10.1", RouteSpec{Net: [4]byte{10, 1, 0, 0}, Bits: 16}},
		{"10.1.2.3", RouteSpec{Net: [4]byte{10, 1, 2, 3}, Bits: 32}},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestParseNonContiguousNetmaskRejected(t *testing.T) {
	_, err := Parse("10.0.0.0/255.0.255.0")
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	for _, spec := range []string{"10.0.0.0/24", "192.168.1.0/255.255.255.0", "172.16"} {
		r, err := Parse(spec)
		require.NoError(t, err)
		r2, err := Parse(r.String())
		require.NoError(t, err)
		require.Equal(t, r, r2)
	}
}

func TestReverseZonesLength(t *testing.T) {
	r, err := Parse("10.0.0.0/24")
	require.NoError(t, err)
	zones := r.ReverseZones()
	require.Len(t, zones, 1)
	require.Equal(t, "0.0.10.in-addr.arpa", zones[0])

	r, err = Parse("10.0.0.0/20")
	require.NoError(t, err)
	zones = r.ReverseZones()
	require.Len(t, zones, 16)
	for _, z := range zones {
		require.Contains(t, z, "in-addr.arpa")
	}
}

func TestReverseZonesHostRoute(t *testing.T) {
	r, err := Parse("10.0.0.2/32")
	require.NoError(t, err)
	zones := r.ReverseZones()
	require.Equal(t, []string{"2.0.0.10.in-addr.arpa"}, zones)
}
