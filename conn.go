package treeftp

import (
	"errors"
	"net"
	"syscall"
	"time"
)

// deadlineConn wraps a net.Conn and pushes the read or write deadline
// forward before every operation, so a stalled server surfaces as a
// timeout instead of blocking forever.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func withDeadlines(conn net.Conn, timeout time.Duration) net.Conn {
	if timeout <= 0 {
		return conn
	}
	return &deadlineConn{Conn: conn, timeout: timeout}
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

// isPeerReset reports whether err means the peer tore the connection down
// (aborted or reset), as opposed to a timeout or a local failure.
func isPeerReset(err error) bool {
	return errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
