package relay

import (
	"fmt"
	"net"

	"github.com/gravitational/trace"
)

// udpKeepAlive sends the keep-alive datagram over a UDP socket connected
// to port 7 (echo) of the tunnel's local-side IP -- sending a packet
// there is what actually pushes traffic across the link (spec.md §4.G,
// §6).
type udpKeepAlive struct {
	conn *net.UDPConn
}

// DialKeepAlive connects a UDP socket to localIP's echo port.
func DialKeepAlive(localIP string) (KeepAliveSender, error) {
	conn, err := net.Dial("udp", fmt.Sprintf("%s:7", localIP))
	if err != nil {
		return nil, trace.Wrap(err, "dialing keepalive socket")
	}
	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		conn.Close()
		return nil, trace.BadParameter("unexpected keepalive conn type %T", conn)
	}
	return &udpKeepAlive{conn: udpConn}, nil
}

func (k *udpKeepAlive) Send(payload []byte) error {
	_, err := k.conn.Write(payload)
	return trace.Wrap(err)
}
