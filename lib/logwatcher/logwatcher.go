// Package logwatcher extracts the interface/tty/IP details pppd reports
// on its log fd and fires a one-shot "link is up" callback once every
// piece has been seen.
package logwatcher

import "regexp"

var (
	ifacePattern    = regexp.MustCompile(`(?m)^Using interface (.*)$`)
	ttyPattern      = regexp.MustCompile(`(?m)^Connect: .* <--> (.*)$`)
	remoteIPPattern = regexp.MustCompile(`(?m)^remote IP address (.*)$`)
	localIPPattern  = regexp.MustCompile(`(?m)^local  IP address (.*)$`)
)

// Watcher accumulates pppd log bytes and re-scans the whole buffer on
// every Feed call until all four fields are known.
type Watcher struct {
	ipUp func(iface, tty, localIP, remoteIP string)

	buf []byte

	iface, tty, localIP, remoteIP string
	fired                         bool
}

// NewWatcher returns a Watcher that invokes ipUp exactly once, as soon as
// the interface name, tty, local IP, and remote IP have all been seen in
// the fed log stream.
func NewWatcher(ipUp func(iface, tty, localIP, remoteIP string)) *Watcher {
	return &Watcher{ipUp: ipUp}
}

// Feed appends chunk to the accumulated log buffer and re-applies every
// pattern that hasn't matched yet.
func (w *Watcher) Feed(chunk []byte) {
	if w.fired {
		return
	}
	w.buf = append(w.buf, chunk...)

	if w.iface == "" {
		if m := ifacePattern.FindSubmatch(w.buf); m != nil {
			w.iface = string(m[1])
		}
	}
	if w.tty == "" {
		if m := ttyPattern.FindSubmatch(w.buf); m != nil {
			w.tty = string(m[1])
		}
	}
	if w.remoteIP == "" {
		if m := remoteIPPattern.FindSubmatch(w.buf); m != nil {
			w.remoteIP = string(m[1])
		}
	}
	if w.localIP == "" {
		if m := localIPPattern.FindSubmatch(w.buf); m != nil {
			w.localIP = string(m[1])
		}
	}

	if w.iface != "" && w.tty != "" && w.localIP != "" && w.remoteIP != "" {
		w.fired = true
		w.ipUp(w.iface, w.tty, w.localIP, w.remoteIP)
	}
}
