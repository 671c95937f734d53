package gatewayproto

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/gravitational/trace"
)

// Favorite is a named VPN configuration the gateway offers.
type Favorite struct {
	ID   string
	Name string
}

var (
	staleSessionPattern = regexp.MustCompile(`HTTP/[0-9.]+ 302( Found)?`)
	favoriteZPattern    = regexp.MustCompile(`Z=([^&]+,[^&]+)&`)
)

// parseFavorites strips the HTTP response down to its XML body and
// extracts every <favorite> element, replacing each id attribute with its
// embedded "Z=a,b&" capture when present (spec.md §3, §4.B, §8).
func parseFavorites(response string) ([]Favorite, error) {
	if staleSessionPattern.MatchString(response) {
		return nil, trace.Wrap(ErrStaleSession{})
	}

	idx := strings.Index(response, "<?xml ")
	if idx < 0 {
		return nil, trace.BadParameter("invalid response getting VPN connection list: no XML body")
	}
	xmlBody := response[idx:]

	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlBody); err != nil {
		return nil, trace.Wrap(err, "parsing favorite list XML")
	}

	var favs []Favorite
	for _, el := range doc.FindElements("//favorite") {
		nameEl := el.SelectElement("name")
		if nameEl == nil {
			continue
		}
		id := el.SelectAttrValue("id", "")
		if m := favoriteZPattern.FindStringSubmatch(id); m != nil {
			id = m[1]
		}
		favs = append(favs, Favorite{ID: id, Name: strings.TrimSpace(nameEl.Text())})
	}
	return favs, nil
}

// SelectFavorite auto-selects the sole favorite when there is exactly one,
// otherwise prompts interactively with a numbered menu and reads a
// zero-based index from in, rejecting out-of-range input.
func SelectFavorite(favs []Favorite, in io.Reader, out io.Writer) (Favorite, error) {
	if len(favs) == 0 {
		return Favorite{}, trace.BadParameter("no VPN favorites available")
	}
	if len(favs) == 1 {
		return favs[0], nil
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintln(out, "Select VPN connection:")
		for i, f := range favs {
			fmt.Fprintf(out, "%d) %s\n", i, f.Name)
		}
		if !scanner.Scan() {
			return Favorite{}, trace.Wrap(scanner.Err(), "reading favorite selection")
		}
		idx, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil || idx < 0 || idx >= len(favs) {
			fmt.Fprintln(out, "Invalid selection.")
			continue
		}
		return favs[idx], nil
	}
}
