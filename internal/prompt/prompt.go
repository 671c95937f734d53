// Package prompt reads credentials from a terminal without echoing them.
package prompt

import (
	"fmt"
	"io"
	"os"

	"github.com/gravitational/trace"
	"golang.org/x/term"
)

// Password prints prompt to out and reads a line from the controlling
// terminal with echo disabled. Falls back to a plain (echoing) read when
// stdin isn't a terminal, so the program stays scriptable in tests.
func Password(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		var s string
		if _, err := fmt.Fscanln(os.Stdin, &s); err != nil && err != io.EOF {
			return "", trace.Wrap(err)
		}
		return s, nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", trace.Wrap(err, "reading password")
	}
	return string(b), nil
}
