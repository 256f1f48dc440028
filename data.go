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

// parenthesized returns the text between the first '(' and the last ')'.
func parenthesized(line string) (string, bool) {
	start := strings.IndexByte(line, '(')
	end := strings.LastIndexByte(line, ')')
	if start == -1 || end < start {
		return "", false
	}
	return line[start+1 : end], true
}

// parsePASV parses a PASV reply line and returns the data endpoint.
// Example: "227 Entering Passive Mode (192,168,1,1,195,149)"
// Returns: 192.168.1.1:50069 (195*256 + 149 = 50069)
func parsePASV(line string) (*net.TCPAddr, error) {
	content, ok := parenthesized(line)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPassiveResponse, line)
	}

	fields := strings.Split(content, ",")
	if len(fields) < 6 {
		return nil, fmt.Errorf("%w: %q has %d fields", ErrInvalidPassiveResponse, line, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	host := strings.Join(fields[:4], ".")
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidParsedIP, host)
	}

	p1, err1 := strconv.Atoi(fields[4])
	p2, err2 := strconv.Atoi(fields[5])
	if err1 != nil || err2 != nil || p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		return nil, fmt.Errorf("%w: %q, %q", ErrInvalidParsedPort, fields[4], fields[5])
	}

	return &net.TCPAddr{IP: ip, Port: p1*256 + p2}, nil
}

// parseEPSV parses an EPSV reply line. The reply only carries a port; the
// address is the control connection's peer.
// Example: "229 Entering Extended Passive Mode (|||6446|)"
func parseEPSV(line string, peer net.IP) (*net.TCPAddr, error) {
	content, ok := parenthesized(line)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPassiveResponse, line)
	}

	fields := strings.Split(content, "|")
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: %q has %d fields", ErrInvalidPassiveResponse, line, len(fields))
	}

	port, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidParsedPort, fields[3])
	}

	return &net.TCPAddr{IP: peer, Port: port}, nil
}

// negotiatePassive turns the trailing line of a PASV or EPSV reply into a
// data endpoint.
//
// A PASV reply advertising 0.0.0.0 is taken to mean the control peer. An
// EPSV reply without parentheses falls back to the cached endpoint from the
// previous negotiation, when there is one.
func negotiatePassive(line string, extended bool, peer net.IP, cached *net.TCPAddr) (*net.TCPAddr, error) {
	if !extended {
		addr, err := parsePASV(line)
		if err != nil {
			return nil, err
		}
		if addr.IP.IsUnspecified() && peer != nil {
			addr.IP = peer
		}
		return addr, nil
	}

	if _, ok := parenthesized(line); !ok && cached != nil {
		return cached, nil
	}
	return parseEPSV(line, peer)
}

// dataChannel is a single-use connection to a passive endpoint. It starts
// reading as soon as it is opened, so the server never blocks writing a
// large listing while the control channel waits for the completion reply.
type dataChannel struct {
	addr   *net.TCPAddr
	conn   net.Conn
	logger *slog.Logger

	counter *progressReader
	done    chan struct{}
	lines   Responses
	err     error

	replaced bool
}

func openDataChannel(dialer *net.Dialer, addr *net.TCPAddr, timeout time.Duration,
	bandwidth int64, logger *slog.Logger) (*dataChannel, error) {
	conn, err := dialer.Dial("tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: data connection to %s: %w", ErrConnection, addr, err)
	}
	logger.Debug("data connection opened", "addr", addr.String())

	d := &dataChannel{
		addr:    addr,
		conn:    conn,
		logger:  logger,
		counter: &progressReader{reader: withDeadlines(conn, timeout)},
		done:    make(chan struct{}),
	}
	go d.drain(ratelimit.NewReader(d.counter, bandwidth))

	return d, nil
}

// drain reads every line until the server closes the connection. Data
// lines carry no reply code.
func (d *dataChannel) drain(r io.Reader) {
	defer close(d.done)

	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		if raw != "" {
			d.lines = append(d.lines, Response{Line: strings.TrimRight(raw, "\r\n")})
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			d.err = err
			return
		}
	}
}

func (d *dataChannel) readResponses() (Responses, error) {
	<-d.done

	if d.err == nil {
		d.logger.Debug("listing received", "addr", d.addr.String(), "lines", len(d.lines))
		return d.lines, nil
	}

	if isPeerReset(d.err) {
		d.logger.Error("data connection aborted by peer", "addr", d.addr.String(), "error", d.err)
		if err := d.reconnect(); err != nil {
			return nil, err
		}
		return nil, ErrReconnected
	}

	return nil, fmt.Errorf("%w: listing from %s: %w", ErrRead, d.addr, d.err)
}

// received returns how many bytes were read once the transfer is over.
func (d *dataChannel) received() int64 {
	<-d.done
	return d.counter.total
}

// reconnect marks the channel as replaced. A passive endpoint accepts one
// connection only; the replacement comes from a new negotiation.
func (d *dataChannel) reconnect() error {
	_ = d.conn.Close()
	d.replaced = true
	return nil
}

func (d *dataChannel) wasReconnected() bool { return d.replaced }

func (d *dataChannel) clearReconnected() { d.replaced = false }

func (d *dataChannel) close() error {
	return d.conn.Close()
}
