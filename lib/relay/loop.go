// Package relay pumps bytes between the pppd PTY and the TLS-wrapped
// tunnel socket, the single-threaded cooperative event loop spec.md §4.G
// describes, consuming the pppd log pipe along the way.
package relay

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/kj54321/f5vpn-login/lib/logwatcher"
)

// KeepAliveTimeout is how long the loop waits without any byte movement
// in either direction before sending a keep-alive datagram (spec.md
// §4.G). A var, not a const, so tests can shrink it.
var KeepAliveTimeout = 600 * time.Second

const bufSize = 4096

// KeepAliveSender fires the single keep-alive UDP datagram. The
// production implementation connects a UDP socket to port 7 of the
// tunnel's local-side IP; tests substitute a recorder.
type KeepAliveSender interface {
	Send(payload []byte) error
}

// Loop owns the four in-flight buffers and two blocked-on flags spec.md
// §4.G names, and the single readiness syscall (unix.Poll) that drives
// them.
type Loop struct {
	pty     *os.File
	ptyFd   int
	logPipe *os.File
	logFd   int
	tls     Conn
	watcher *logwatcher.Watcher
	clock   clockwork.Clock
	log     *logrus.Entry

	keepAlive KeepAliveSender

	mu sync.Mutex

	dataToPPPD    []byte
	dataToSSL     []byte
	dataToSSLBuf2 []byte

	sslWriteBlockedOnRead bool
	sslReadBlockedOnWrite bool

	lastActivity time.Time
}

// NewLoop wires a Loop over ptyMaster/logPipe (already-open, still in
// blocking mode) and tlsConn. The PTY and log pipe are switched to
// non-blocking mode internally.
func NewLoop(ptyMaster, logPipe *os.File, tlsConn Conn, watcher *logwatcher.Watcher, clock clockwork.Clock) (*Loop, error) {
	ptyFd := int(ptyMaster.Fd())
	logFd := int(logPipe.Fd())
	if err := unix.SetNonblock(ptyFd, true); err != nil {
		return nil, trace.Wrap(err, "setting pty non-blocking")
	}
	if err := unix.SetNonblock(logFd, true); err != nil {
		return nil, trace.Wrap(err, "setting log pipe non-blocking")
	}
	return &Loop{
		pty:          ptyMaster,
		ptyFd:        ptyFd,
		logPipe:      logPipe,
		logFd:        logFd,
		tls:          tlsConn,
		watcher:      watcher,
		clock:        clock,
		log:          logrus.WithField("component", "relay"),
		lastActivity: clock.Now(),
	}, nil
}

// ArmKeepAlive enables periodic keep-alive datagrams via sender.
func (l *Loop) ArmKeepAlive(sender KeepAliveSender) {
	l.mu.Lock()
	l.keepAlive = sender
	l.mu.Unlock()
}

// Run pumps bytes until either side reports EOF, ctx is cancelled, or a
// non-recoverable error occurs. On normal EOF it returns nil.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return trace.Wrap(ctx.Err())
		default:
		}

		n, err := unix.Poll(l.pollFds(), l.pollTimeoutMillis())
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return trace.Wrap(err, "poll")
		}
		_ = n

		l.maybeSendKeepAlive()

		done, err := l.readLogPipe()
		if done || err != nil {
			return trace.Wrap(err)
		}

		done, err = l.readPTY()
		if done || err != nil {
			return trace.Wrap(err)
		}

		done, err = l.readTLS()
		if done || err != nil {
			return trace.Wrap(err)
		}

		if err := l.writePTY(); err != nil {
			return trace.Wrap(err)
		}

		l.promoteToWriteBuffer()

		if err := l.writeTLS(); err != nil {
			return trace.Wrap(err)
		}
	}
}

// pollFds builds the readiness set per the table in spec.md §4.G. The
// TLS socket's own readiness isn't observable through unix.Poll once
// it's wrapped behind the Conn abstraction (real crypto/tls sockets have
// no separate non-blocking mode), so TLS reads/writes are attempted every
// iteration with a bounded deadline instead; only the PTY and log pipe
// participate in the poll set itself.
func (l *Loop) pollFds() []unix.PollFd {
	l.mu.Lock()
	defer l.mu.Unlock()

	ptyEvents := int16(0)
	if len(l.dataToPPPD) > 0 {
		ptyEvents |= unix.POLLOUT
	}
	if len(l.dataToSSL) == 0 {
		ptyEvents |= unix.POLLIN
	}
	return []unix.PollFd{
		{Fd: int32(l.ptyFd), Events: ptyEvents},
		{Fd: int32(l.logFd), Events: unix.POLLIN},
	}
}

// pollTimeoutMillis mirrors the keep-alive-driven select timeout: bounded
// by how long until the keep-alive deadline, and additionally capped so
// the loop re-attempts the deadline-based TLS I/O regularly.
func (l *Loop) pollTimeoutMillis() int {
	const tlsPollGranularity = 200 * time.Millisecond

	l.mu.Lock()
	armed := l.keepAlive != nil
	last := l.lastActivity
	l.mu.Unlock()

	timeout := tlsPollGranularity
	if armed {
		remaining := last.Add(KeepAliveTimeout).Sub(l.clock.Now())
		if remaining < 0 {
			remaining = 0
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	return int(timeout / time.Millisecond)
}

func (l *Loop) maybeSendKeepAlive() {
	l.mu.Lock()
	sender := l.keepAlive
	idle := l.clock.Now().Sub(l.lastActivity)
	l.mu.Unlock()

	if sender == nil || idle < KeepAliveTimeout {
		return
	}
	if err := sender.Send([]byte("keepalive")); err != nil {
		l.log.WithError(err).Warn("keepalive send failed")
	}
}

// readLogPipe reads available log bytes and feeds the log watcher.
// Returns done=true on EOF.
func (l *Loop) readLogPipe() (bool, error) {
	buf := make([]byte, bufSize)
	n, err := unix.Read(l.logFd, buf)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return false, nil
	case err != nil:
		return false, trace.Wrap(err, "reading log pipe")
	case n == 0:
		l.log.Info("EOF on pppd log pipe")
		return true, nil
	}
	l.watcher.Feed(buf[:n])
	return false, nil
}

// readPTY reads pppd output into dataToSSL when it's empty.
func (l *Loop) readPTY() (bool, error) {
	l.mu.Lock()
	needsRead := len(l.dataToSSL) == 0
	l.mu.Unlock()
	if !needsRead {
		return false, nil
	}

	buf := make([]byte, bufSize)
	n, err := unix.Read(l.ptyFd, buf)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return false, nil
	case err != nil:
		return false, trace.Wrap(err, "reading pty")
	case n == 0:
		l.log.Info("EOF on pppd pty")
		return true, nil
	}

	l.mu.Lock()
	l.dataToSSL = append(l.dataToSSL, buf[:n]...)
	l.mu.Unlock()
	return false, nil
}

// readTLS reads tunnel bytes into dataToPPPD when it's empty.
func (l *Loop) readTLS() (bool, error) {
	l.mu.Lock()
	needsRead := len(l.dataToPPPD) == 0
	l.mu.Unlock()
	if !needsRead {
		return false, nil
	}

	l.mu.Lock()
	l.sslReadBlockedOnWrite = false
	l.mu.Unlock()

	buf := make([]byte, bufSize)
	n, err := l.tls.Read(buf)
	switch {
	case err == ErrWantRead:
		return false, nil
	case err == ErrWantWrite:
		l.mu.Lock()
		l.sslReadBlockedOnWrite = true
		l.mu.Unlock()
		return false, nil
	case err != nil:
		return false, trace.Wrap(err, "reading tls")
	case n == 0:
		l.log.Info("EOF on tls socket")
		return true, nil
	}

	l.mu.Lock()
	l.dataToPPPD = append(l.dataToPPPD, buf[:n]...)
	l.lastActivity = l.clock.Now()
	l.mu.Unlock()
	return false, nil
}

// writePTY flushes as much of dataToPPPD as the PTY accepts.
func (l *Loop) writePTY() error {
	l.mu.Lock()
	pending := l.dataToPPPD
	l.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	n, err := unix.Write(l.ptyFd, pending)
	if err == unix.EAGAIN || err == unix.EINTR {
		return nil
	}
	if err != nil {
		return trace.Wrap(err, "writing pty")
	}

	l.mu.Lock()
	l.dataToPPPD = l.dataToPPPD[n:]
	l.mu.Unlock()
	return nil
}

// promoteToWriteBuffer moves dataToSSL into dataToSSLBuf2 once the latter
// is empty. TLS write semantics require retries to use the exact same
// buffer pointer and length, so once bytes land in buf2 they are never
// reassigned until a write fully succeeds (spec.md §4.G).
func (l *Loop) promoteToWriteBuffer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.dataToSSLBuf2) == 0 && len(l.dataToSSL) > 0 {
		l.dataToSSLBuf2 = l.dataToSSL
		l.dataToSSL = nil
	}
}

// writeTLS attempts to flush dataToSSLBuf2 in one call, as TLS write
// semantics require.
func (l *Loop) writeTLS() error {
	l.mu.Lock()
	pending := l.dataToSSLBuf2
	l.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	l.mu.Lock()
	l.sslWriteBlockedOnRead = false
	l.mu.Unlock()

	n, err := l.tls.Write(pending)
	switch {
	case err == ErrWantRead:
		l.mu.Lock()
		l.sslWriteBlockedOnRead = true
		l.mu.Unlock()
		return nil
	case err == ErrWantWrite:
		return nil
	case err != nil:
		return trace.Wrap(err, "writing tls")
	}

	if n != len(pending) {
		return trace.BadParameter("short tls write: wrote %d of %d bytes", n, len(pending))
	}

	l.mu.Lock()
	l.dataToSSLBuf2 = nil
	l.lastActivity = l.clock.Now()
	l.mu.Unlock()
	return nil
}
