// Package routespec parses the three route-spec text forms the gateway's
// LAN0 parameter and the CLI's custom routes use, and derives the
// reverse-DNS zones a route implies.
package routespec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gravitational/trace"
)

// RouteSpec is a parsed (network, prefix-length) pair. Bits == 32 denotes a
// host route.
type RouteSpec struct {
	Net  [4]byte
	Bits int
}

var mask2bits = func() map[uint32]int {
	m := make(map[uint32]int, 33)
	for n := 0; n <= 32; n++ {
		var mask uint32
		if n > 0 {
			mask = ^uint32(0) << (32 - n)
		}
		m[mask] = n
	}
	return m
}()

// Parse accepts "w.x.y.z/N", "w.x.y.z/A.B.C.D", and "w[.x[.y[.z]]]".
func Parse(spec string) (RouteSpec, error) {
	if idx := strings.IndexByte(spec, '/'); idx >= 0 {
		netPart, bitsPart := spec[:idx], spec[idx+1:]
		net, err := parseOctets(netPart)
		if err != nil {
			return RouteSpec{}, trace.Wrap(err)
		}
		if strings.Contains(bitsPart, ".") {
			maskOctets, err := parseOctets(bitsPart)
			if err != nil {
				return RouteSpec{}, trace.Wrap(err)
			}
			mask := uint32(maskOctets[0])<<24 | uint32(maskOctets[1])<<16 | uint32(maskOctets[2])<<8 | uint32(maskOctets[3])
			bits, ok := mask2bits[mask]
			if !ok {
				return RouteSpec{}, trace.BadParameter("non-contiguous netmask in route spec %q", spec)
			}
			return RouteSpec{Net: net, Bits: bits}, nil
		}
		bits, err := strconv.Atoi(bitsPart)
		if err != nil || bits < 0 || bits > 32 {
			return RouteSpec{}, trace.BadParameter("invalid prefix length in route spec %q", spec)
		}
		return RouteSpec{Net: net, Bits: bits}, nil
	}

	parts := strings.Split(spec, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return RouteSpec{}, trace.BadParameter("invalid route spec %q", spec)
	}
	var net [4]byte
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return RouteSpec{}, trace.BadParameter("invalid octet %q in route spec %q", p, spec)
		}
		net[i] = byte(v)
	}
	return RouteSpec{Net: net, Bits: len(parts) * 8}, nil
}

func parseOctets(s string) ([4]byte, error) {
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return [4]byte{}, trace.BadParameter("invalid dotted value %q", s)
	}
	var out [4]byte
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return [4]byte{}, trace.BadParameter("invalid octet %q in %q", p, s)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// String renders the canonical "w.x.y.z/N" form.
func (r RouteSpec) String() string {
	return fmt.Sprintf("%d.%d.%d.%d/%d", r.Net[0], r.Net[1], r.Net[2], r.Net[3], r.Bits)
}

// NetString renders just the dotted network part.
func (r RouteSpec) NetString() string {
	return fmt.Sprintf("%d.%d.%d.%d", r.Net[0], r.Net[1], r.Net[2], r.Net[3])
}

// ReverseZones returns the in-addr.arpa zones covering this route, per
// spec.md §4.C: one zone per full prefix octet, expanded into
// 2^(8-bits%8) zones for a partial trailing octet.
func (r RouteSpec) ReverseZones() []string {
	domain := "in-addr.arpa"
	bits := r.Bits
	i := 0
	for bits >= 8 {
		domain = fmt.Sprintf("%d.%s", r.Net[i], domain)
		bits -= 8
		i++
	}
	if bits == 0 {
		return []string{domain}
	}
	remaining := 8 - bits
	start := int(r.Net[i]) &^ (1<<remaining - 1)
	n := 1 << remaining
	zones := make([]string, 0, n)
	for v := start; v < start+n; v++ {
		zones = append(zones, fmt.Sprintf("%d.%s", v, domain))
	}
	return zones
}
