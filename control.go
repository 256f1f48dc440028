package treeftp

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gzordrai/tree-ftp/internal/ratelimit"
)

// Response is a single line of a server reply.
type Response struct {
	// Code is the three-digit reply code, or 0 when the line does not start
	// with one (continuation lines, listing lines).
	Code int

	// Line is the received line without its line terminator.
	Line string
}

// Responses is one logical server reply, in the order the lines were received.
type Responses []Response

// Last returns the final line of the reply, or the zero Response if the
// reply is empty.
func (r Responses) Last() Response {
	if len(r) == 0 {
		return Response{}
	}
	return r[len(r)-1]
}

// Code returns the reply code of the final line, or 0 for an empty reply.
func (r Responses) Code() int {
	return r.Last().Code
}

// Lines returns the text of every line.
func (r Responses) Lines() []string {
	lines := make([]string, len(r))
	for i, resp := range r {
		lines[i] = resp.Line
	}
	return lines
}

// preliminary reports whether the reply is a 1xx mark that will be
// followed by a completion reply.
func (r Responses) preliminary() bool {
	code := r.Code()
	return code >= 100 && code < 200
}

// replyCode parses the three-digit prefix of a reply line.
func replyCode(line string) int {
	if len(line) < 3 {
		return 0
	}
	for i := range 3 {
		if line[i] < '0' || line[i] > '9' {
			return 0
		}
	}
	code, _ := strconv.Atoi(line[:3])
	return code
}

// readReply reads lines until one closes the reply or the stream ends.
//
// Single-line format: "220 Welcome\r\n"
// Multi-line format:
//
//	"220-Welcome to FTP\r\n"
//	"220-This is line 2\r\n"
//	"220 Ready\r\n"
//
// A reply is closed by a line whose fourth character is a space. Reaching
// the end of the stream is not an error; whatever was read is returned.
func readReply(r *bufio.Reader) (Responses, error) {
	var resp Responses
	for {
		raw, err := r.ReadString('\n')
		if raw != "" {
			line := strings.TrimRight(raw, "\r\n")
			resp = append(resp, Response{Code: replyCode(line), Line: line})
			if len(line) >= 4 && line[3] == ' ' {
				return resp, nil
			}
		}
		if err == io.EOF {
			return resp, nil
		}
		if err != nil {
			return resp, err
		}
	}
}

// command is one FTP command as sent on the control connection.
type command struct {
	verb     string
	arg      string
	takesArg bool
}

var (
	cmdSyst = command{verb: "SYST"}
	cmdFeat = command{verb: "FEAT"}
	cmdPwd  = command{verb: "PWD"}
	cmdPasv = command{verb: "PASV"}
	cmdEpsv = command{verb: "EPSV"}
	cmdList = command{verb: "LIST"}
	cmdCdup = command{verb: "CDUP"}
	cmdQuit = command{verb: "QUIT"}
)

func cmdUser(name string) command { return command{verb: "USER", arg: name, takesArg: true} }
func cmdPass(pass string) command { return command{verb: "PASS", arg: pass, takesArg: true} }
func cmdType(code string) command { return command{verb: "TYPE", arg: code, takesArg: true} }
func cmdCwd(path string) command  { return command{verb: "CWD", arg: path, takesArg: true} }

// wire returns the CRLF-terminated form of the command.
func (c command) wire() string {
	if c.takesArg {
		return c.verb + " " + c.arg + "\r\n"
	}
	return c.verb + "\r\n"
}

// String returns the command for logging, with passwords masked.
func (c command) String() string {
	switch {
	case c.verb == "PASS":
		return "PASS ***"
	case c.takesArg:
		return c.verb + " " + c.arg
	default:
		return c.verb
	}
}

// controlChannel is the reconnectable command connection.
type controlChannel struct {
	addr    string
	dialer  *net.Dialer
	timeout time.Duration
	policy  ReconnectPolicy
	pacer   *ratelimit.Pacer
	logger  *slog.Logger

	conn     net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	replaced bool
}

// dialControl connects to addr and reads the server greeting.
func dialControl(addr string, dialer *net.Dialer, timeout time.Duration, policy ReconnectPolicy,
	pacer *ratelimit.Pacer, logger *slog.Logger) (*controlChannel, Responses, error) {
	c := &controlChannel{
		addr:    addr,
		dialer:  dialer,
		timeout: timeout,
		policy:  policy,
		pacer:   pacer,
		logger:  logger,
	}

	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrConnection, addr, err)
	}
	c.attach(conn)

	greeting, err := readReply(c.reader)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("%w: greeting: %w", ErrRead, err)
	}
	c.logger.Debug("ftp greeting", "code", greeting.Code(), "message", greeting.Last().Line)

	return c, greeting, nil
}

// attach makes conn the live connection. Buffered state from a previous
// connection is dropped.
func (c *controlChannel) attach(conn net.Conn) {
	c.conn = conn
	wrapped := withDeadlines(conn, c.timeout)
	c.reader = bufio.NewReader(wrapped)
	c.writer = bufio.NewWriter(wrapped)
}

// peerIP returns the remote address of the live connection.
func (c *controlChannel) peerIP() net.IP {
	if addr, ok := c.conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	host, _, err := net.SplitHostPort(c.conn.RemoteAddr().String())
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

// readResponses reads one reply. A peer reset, or a connection closed
// before any reply line arrived, makes it reconnect and return
// ErrReconnected with no responses.
func (c *controlChannel) readResponses() (Responses, error) {
	resp, err := readReply(c.reader)
	if err == nil && len(resp) == 0 {
		c.logger.Error("control connection closed by peer, reconnecting", "addr", c.addr)
		if err := c.reconnect(); err != nil {
			return nil, err
		}
		return nil, ErrReconnected
	}
	if err == nil {
		c.logger.Debug("ftp response", "code", resp.Code(), "lines", len(resp))
		return resp, nil
	}

	if isPeerReset(err) {
		c.logger.Error("control connection aborted by peer, reconnecting", "addr", c.addr, "error", err)
		if err := c.reconnect(); err != nil {
			return nil, err
		}
		return nil, ErrReconnected
	}

	return resp, fmt.Errorf("%w: %w", ErrRead, err)
}

// reconnect replaces the live connection, retrying at a fixed interval
// until the policy budget is spent. The fresh greeting is discarded.
func (c *controlChannel) reconnect() error {
	if c.conn != nil {
		_ = c.conn.Close()
	}

	time.Sleep(c.policy.Settle)

	start := time.Now()
	for attempt := 1; ; attempt++ {
		conn, err := c.dialer.Dial("tcp", c.addr)
		if err == nil {
			c.attach(conn)
			c.replaced = true
			c.logger.Info("reconnected to the server", "addr", c.addr, "attempt", attempt)

			if _, err := readReply(c.reader); err != nil {
				return fmt.Errorf("%w: greeting after reconnect: %w", ErrRead, err)
			}
			return nil
		}

		if time.Since(start) >= c.policy.Budget {
			c.logger.Error("giving up reconnecting", "addr", c.addr, "budget", c.policy.Budget)
			return fmt.Errorf("%w: %s after %s: %w", ErrReconnectFailed, c.addr, c.policy.Budget, err)
		}

		c.logger.Warn("failed to reconnect, retrying",
			"addr", c.addr,
			"attempt", attempt,
			"retry_in", c.policy.Interval,
			"error", err,
		)
		time.Sleep(c.policy.Interval)
	}
}

func (c *controlChannel) wasReconnected() bool { return c.replaced }

func (c *controlChannel) clearReconnected() { c.replaced = false }

func (c *controlChannel) close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// write sends one command. A failure here is recoverable by the caller.
func (c *controlChannel) write(cmd command) error {
	if _, err := c.writer.WriteString(cmd.wire()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommandWrite, cmd.verb, err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommandFlush, cmd.verb, err)
	}
	return nil
}

// sendCommand sends cmd and reads its reply.
//
// A failed write reconnects once and is retried on the new connection; the
// reply is then returned together with ErrReconnected. For LIST, a 1xx mark
// is followed by a second read for the completion reply, unless the first
// read already had to reconnect.
func (c *controlChannel) sendCommand(cmd command) (Responses, error) {
	c.pacer.Wait()
	c.logger.Debug("ftp command", "cmd", cmd.String())

	replaced := false
	if err := c.write(cmd); err != nil {
		c.logger.Error("error writing command, reconnecting", "cmd", cmd.verb, "error", err)
		if err := c.reconnect(); err != nil {
			return nil, err
		}
		replaced = true

		if err := c.write(cmd); err != nil {
			return nil, err
		}
	}

	resp, err := c.readResponses()
	if err != nil {
		return resp, err
	}

	if cmd.verb == cmdList.verb && resp.preliminary() {
		more, err := c.readResponses()
		resp = append(resp, more...)
		if err != nil {
			return resp, err
		}
	}

	if replaced {
		return resp, ErrReconnected
	}
	return resp, nil
}
