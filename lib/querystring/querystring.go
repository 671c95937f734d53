// Package querystring decodes the "embed parameters" encoding the gateway
// uses for tunnel parameters: key=value&key=value, with a legacy qNN form
// where the whole key=value pair is hex-encoded.
package querystring

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/gravitational/trace"
)

var qKeyPattern = regexp.MustCompile(`^q[0-9]+$`)

// Decode splits s on '&', then each part on the first '='. Keys matching
// q[0-9]+ carry a hex-encoded "key=value" pair as their value; that pair
// is decoded and re-split before being added to the result.
func Decode(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(s, "&") {
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			k, v = part, ""
		}
		if qKeyPattern.MatchString(k) {
			raw, err := hex.DecodeString(v)
			if err != nil {
				return nil, trace.Wrap(err, "decoding hex-encoded parameter %q", k)
			}
			k, v, ok = strings.Cut(string(raw), "=")
			if !ok {
				return nil, trace.BadParameter("malformed qNN payload for %q", k)
			}
		}
		out[k] = v
	}
	return out, nil
}

// Encode is the inverse of Decode for keys that don't themselves look like
// a qNN placeholder and values containing no '&'. It exists mainly to make
// the codec's round-trip property testable.
func Encode(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "&")
}
