//go:build unix

package relay

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// WatchDiagnosticSignal dumps buffer and flag state to stderr on SIGUSR1
// until ctx is done, without altering any loop state (spec.md §4.G).
func (l *Loop) WatchDiagnosticSignal(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			fmt.Fprintln(os.Stderr, l.diagnosticSnapshot())
		}
	}
}

func (l *Loop) diagnosticSnapshot() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf(
		"ssl_write_blocked_on_read=%v ssl_read_blocked_on_write=%v "+
			"len(data_to_pppd)=%d len(data_to_ssl)=%d len(data_to_ssl_buf2)=%d "+
			"time_since_last_activity=%s",
		l.sslWriteBlockedOnRead, l.sslReadBlockedOnWrite,
		len(l.dataToPPPD), len(l.dataToSSL), len(l.dataToSSLBuf2),
		l.clock.Now().Sub(l.lastActivity),
	)
}
