// Package session persists and reuses the last VPN session cookie across
// invocations of the CLI, the single nul-separated record described in
// spec.md §6.
package session

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
)

// DefaultPath is "~/.f5vpn-login.conf", expanded against $HOME.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".f5vpn-login.conf"
	}
	return filepath.Join(home, ".f5vpn-login.conf")
}

// Record is the parsed cache contents.
type Record struct {
	UserHost string
	Session  string
	SavedAt  time.Time
}

// Cache loads and saves Record against a file on disk. The original
// program never actually enforced a freshness window on the cached
// session (the `current_time - int(old_time) >= 1` check in the original
// source is dead code that's always true and doesn't gate anything) --
// MaxSessionAge is this port's real version of that check (spec.md §9
// open question).
type Cache struct {
	Path          string
	MaxSessionAge time.Duration
	Clock         clockwork.Clock
}

// NewCache returns a Cache using DefaultPath, a 30 minute freshness
// window, and the real clock.
func NewCache() *Cache {
	return &Cache{
		Path:          DefaultPath(),
		MaxSessionAge: 30 * time.Minute,
		Clock:         clockwork.NewRealClock(),
	}
}

// Load reads the cache file. Any read or parse error is non-fatal and
// returns the zero Record (spec.md §6: "any read error is non-fatal").
func (c *Cache) Load() Record {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return Record{}
	}
	fields := strings.Split(strings.TrimRight(string(data), "\n"), "\x00")
	if len(fields) != 4 {
		return Record{}
	}
	savedAtUnix, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Record{}
	}
	return Record{
		UserHost: fields[1],
		Session:  fields[2],
		SavedAt:  time.Unix(savedAtUnix, 0),
	}
}

// Fresh reports whether r was saved recently enough to be worth trying,
// per MaxSessionAge.
func (c *Cache) Fresh(r Record) bool {
	if r.Session == "" {
		return false
	}
	return c.Clock.Now().Sub(r.SavedAt) < c.MaxSessionAge
}

// Save writes a new record, overwriting any previous contents. Write
// failures are logged by the caller, not returned as fatal (matching
// write_prefs's best-effort behavior), but Save still returns the error
// so callers can choose.
func (c *Cache) Save(userHost, sessionID string) error {
	line := strings.Join([]string{"", userHost, sessionID, strconv.FormatInt(c.Clock.Now().Unix(), 10)}, "\x00")
	return trace.Wrap(os.WriteFile(c.Path, []byte(line), 0600))
}
