package gatewayproto

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/gravitational/trace"

	"github.com/kj54321/f5vpn-login/lib/querystring"
)

// TunnelParams is the named parameter set returned per-favorite. Unknown
// keys are preserved verbatim (spec.md §3).
type TunnelParams map[string]string

func (p TunnelParams) require(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", trace.Wrap(&ErrMissingParam{Key: key})
	}
	return v, nil
}

// SessionID is the Session_ID parameter.
func (p TunnelParams) SessionID() (string, error) { return p.require("Session_ID") }

// TunnelHost is the tunnel_host0 parameter.
func (p TunnelParams) TunnelHost() (string, error) { return p.require("tunnel_host0") }

// TunnelPort is the tunnel_port0 parameter, parsed as an int.
func (p TunnelParams) TunnelPort() (int, error) {
	s, err := p.require("tunnel_port0")
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, trace.Wrap(err, "parsing tunnel_port0")
	}
	return port, nil
}

// LANRoutes splits LAN0 on spaces into individual route specs. Returns nil
// if LAN0 is absent or empty (LAN0 is optional: some favorites carry no
// split-tunnel routes).
func (p TunnelParams) LANRoutes() []string {
	return splitNonEmpty(p["LAN0"], " ")
}

// DNSServers splits DNS0 on spaces.
func (p TunnelParams) DNSServers() []string {
	return splitNonEmpty(p["DNS0"], " ")
}

// DNSSuffixes splits DNSSuffix0 on commas.
func (p TunnelParams) DNSSuffixes() []string {
	return splitNonEmpty(p["DNSSuffix0"], ",")
}

func splitNonEmpty(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

var (
	embedPattern        = regexp.MustCompile(`<embed [^>]*?(version=[^>]*)>`)
	writelnPattern       = regexp.MustCompile(`document\.writeln\('(version=[^)]*)'\)`)
	xmlParamsPattern    = regexp.MustCompile(`(?s)<\?xml.*<favorite.*<object\s+ID="ur_Host".+?</favorite>`)
	staleLocationPattern = regexp.MustCompile(`(?m)^Location: /my\.logon\.php3`)
)

// parseTunnelParams implements the three decoders tried in order by
// spec.md §4.B item 4.
func parseTunnelParams(response string) (TunnelParams, error) {
	if matches := embedPattern.FindAllStringSubmatch(response, -1); len(matches) > 0 {
		return decodeEmbedForm(matches[len(matches)-1][1])
	}
	if matches := writelnPattern.FindAllStringSubmatch(response, -1); len(matches) > 0 {
		return decodeEmbedForm(matches[len(matches)-1][1])
	}
	if m := xmlParamsPattern.FindString(response); m != "" {
		return decodeXMLParams(m)
	}
	if staleLocationPattern.MatchString(response) {
		return nil, trace.Wrap(ErrStaleSession{})
	}
	return nil, trace.BadParameter("could not find tunnel parameters in gateway response")
}

func decodeEmbedForm(raw string) (TunnelParams, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(raw, " ", "&"), `"`, "")
	m, err := querystring.Decode(cleaned)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return TunnelParams(m), nil
}

func decodeXMLParams(xmlFragment string) (TunnelParams, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlFragment); err != nil {
		return nil, trace.Wrap(err, "parsing tunnel params XML")
	}
	obj := doc.FindElement("//object[@ID='ur_Host']")
	if obj == nil {
		return nil, trace.BadParameter(`no <object ID="ur_Host"> element found`)
	}
	params := make(TunnelParams)
	for _, child := range obj.ChildElements() {
		params[child.Tag] = strings.TrimSpace(child.Text())
	}
	return params, nil
}
