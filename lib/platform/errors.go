package platform

import "fmt"

// Unsupported reports that Detect could not find a DNS/route backend it
// recognizes for the running OS.
type Unsupported struct {
	GOOS   string
	Reason string
}

func (e *Unsupported) Error() string {
	return fmt.Sprintf("unsupported platform %s: %s", e.GOOS, e.Reason)
}
