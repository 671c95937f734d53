// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Init sets up the standard logger the way the rest of this program expects
// to find it: text formatter, level driven by the CLI's --debug flag, and
// discarding output entirely when not debugging (a CLI tool's normal runs
// should be silent on the log stream and speak through explicit
// stdout/stderr writes instead).
func Init(debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: !isTerminal(os.Stderr),
	})
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetOutput(os.Stderr)
		return
	}
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetOutput(io.Discard)
}

// Component returns a logger scoped to one of this program's named
// components, mirroring how the teacher tags log lines by subsystem.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
