package relay

import (
	"crypto/tls"
	"errors"
	"net"
	"time"
)

// ErrWantRead and ErrWantWrite are the Go-idiomatic stand-ins for
// OpenSSL's SSL_ERROR_WANT_READ/SSL_ERROR_WANT_WRITE: "no bytes moved,
// try again, the underlying transport isn't ready yet." Go's crypto/tls
// has no non-blocking mode of its own, so the production Conn adapter
// (tlsConn below) manufactures these from read/write deadline timeouts.
var (
	ErrWantRead  = errors.New("relay: tls read would block")
	ErrWantWrite = errors.New("relay: tls write would block")
)

// Conn is the half of net.Conn the relay loop needs from the tunnel's TLS
// socket, reduced so tests can swap in a fake without a real certificate.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// tlsConn adapts a *tls.Conn to Conn by giving every Read/Write a short
// deadline and translating its timeout into the corresponding ErrWant*,
// the closest idiomatic-Go equivalent of polling a non-blocking OpenSSL
// socket (spec.md §4.G).
type tlsConn struct {
	conn         *tls.Conn
	blockTimeout time.Duration
}

// NewTLSConn wraps conn for use by Loop. blockTimeout bounds how long a
// single Read or Write call waits before reporting "would block" — it
// doubles as the loop's polling granularity when nothing else is ready.
func NewTLSConn(conn *tls.Conn, blockTimeout time.Duration) Conn {
	return &tlsConn{conn: conn, blockTimeout: blockTimeout}
}

func (c *tlsConn) Read(p []byte) (int, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.blockTimeout))
	n, err := c.conn.Read(p)
	if err != nil && isTimeout(err) {
		return 0, ErrWantRead
	}
	return n, err
}

func (c *tlsConn) Write(p []byte) (int, error) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.blockTimeout))
	n, err := c.conn.Write(p)
	if err != nil && isTimeout(err) {
		return n, ErrWantWrite
	}
	return n, err
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
