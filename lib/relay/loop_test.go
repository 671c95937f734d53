package relay

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kj54321/f5vpn-login/lib/logwatcher"
)

// newFakePTYPair returns two ends of a connected stream socket, standing
// in for a PTY master/slave pair: fd 0 is handed to the Loop, fd 1 is the
// test's "pppd" side.
func newFakePTYPair(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	return os.NewFile(uintptr(fds[0]), "pty-loop-end"), os.NewFile(uintptr(fds[1]), "pty-test-end")
}

// flakyTLSConn is a scripted Conn: Read serves one chunk per call (or
// ErrWantRead / EOF), Write blocks on the first attempt then succeeds,
// recording the pointer identity of every attempted buffer so tests can
// assert the retry used the same underlying array.
type flakyTLSConn struct {
	mu sync.Mutex

	readChunks [][]byte
	readIdx    int
	readEOF    bool

	writeAttempts int
	writePtrs     []uintptr
	written       []byte
}

func (c *flakyTLSConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readIdx >= len(c.readChunks) {
		if c.readEOF {
			return 0, nil
		}
		return 0, ErrWantRead
	}
	chunk := c.readChunks[c.readIdx]
	c.readIdx++
	return copy(p, chunk), nil
}

func (c *flakyTLSConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeAttempts++
	if len(p) > 0 {
		c.writePtrs = append(c.writePtrs, uintptr(unsafe.Pointer(&p[0])))
	}
	if c.writeAttempts == 1 {
		return 0, ErrWantWrite
	}
	c.written = append(c.written, p...)
	return len(p), nil
}

func newTestLoop(t *testing.T, tls Conn, clock clockwork.Clock) (*Loop, *os.File) {
	t.Helper()
	ptyLoopEnd, ptyTestEnd := newFakePTYPair(t)
	t.Cleanup(func() { ptyLoopEnd.Close(); ptyTestEnd.Close() })

	logRead, logWrite, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { logRead.Close(); logWrite.Close() })

	watcher := logwatcher.NewWatcher(func(iface, tty, localIP, remoteIP string) {})
	loop, err := NewLoop(ptyLoopEnd, logRead, tls, watcher, clock)
	require.NoError(t, err)
	return loop, ptyTestEnd
}

func TestLoopTerminatesOnPTYEOF(t *testing.T) {
	loop, ptyTestEnd := newTestLoop(t, &flakyTLSConn{readEOF: true}, clockwork.NewFakeClock())
	ptyTestEnd.Close() // pppd side hangs up -> PTY read returns EOF

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx))
}

func TestLoopTerminatesOnTLSEOF(t *testing.T) {
	loop, _ := newTestLoop(t, &flakyTLSConn{readEOF: true}, clockwork.NewFakeClock())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx))
}

func TestLoopPreservesByteOrderPTYToTLS(t *testing.T) {
	conn := &flakyTLSConn{readEOF: false}
	loop, ptyTestEnd := newTestLoop(t, conn, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	_, err := ptyTestEnd.Write([]byte("hello world"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return string(conn.written) == "hello world"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestLoopRetriesWriteWithSameBufferPointer(t *testing.T) {
	conn := &flakyTLSConn{readEOF: false}
	loop, ptyTestEnd := newTestLoop(t, conn, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	_, err := ptyTestEnd.Write([]byte("retry-me"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.writePtrs) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	conn.mu.Lock()
	require.Equal(t, conn.writePtrs[0], conn.writePtrs[1], "retry must reuse the exact buffer pointer")
	conn.mu.Unlock()

	cancel()
	<-done
}

func TestLoopSendsKeepAliveAfterIdleTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	loop, _ := newTestLoop(t, &flakyTLSConn{readEOF: false}, clock)

	sent := make(chan struct{}, 1)
	loop.ArmKeepAlive(keepAliveFunc(func(payload []byte) error {
		select {
		case sent <- struct{}{}:
		default:
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case <-sent:
		t.Fatal("keepalive fired before the timeout elapsed")
	case <-time.After(300 * time.Millisecond):
	}

	clock.Advance(KeepAliveTimeout + time.Second)

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("keepalive never fired after the idle timeout elapsed")
	}

	cancel()
	<-done
}

type keepAliveFunc func(payload []byte) error

func (f keepAliveFunc) Send(payload []byte) error { return f(payload) }
