// Package address validates server addresses given on the command line and
// resolves them to TCP endpoints.
//
// An address is a host with an optional port. The host can be a dotted IPv4
// address, a bracketed IPv6 address, a domain name, or a single-label local
// name such as "localhost". Without a port, DefaultPort is used.
package address

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPort is the FTP control port.
const DefaultPort = 21

var (
	// ErrInvalid is returned for addresses that are not syntactically valid.
	ErrInvalid = errors.New("invalid address")

	// ErrResolve is returned when a valid address does not resolve.
	ErrResolve = errors.New("unable to resolve address")
)

var (
	labelRe  = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)
	dottedRe = regexp.MustCompile(`^[0-9.]+$`)
)

// Address is a validated host and port.
type Address struct {
	Host string
	Port int
}

// String returns the address in "host:port" form.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Parse validates s and returns its host and port.
func Parse(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalid)
	}

	host, port, err := split(s)
	if err != nil {
		return Address{}, err
	}
	if err := validateHost(host); err != nil {
		return Address{}, fmt.Errorf("%w: %q: %w", ErrInvalid, s, err)
	}
	return Address{Host: host, Port: port}, nil
}

// Validate reports whether s is a valid address.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

// Resolve validates s and resolves it to the first TCP endpoint found.
func Resolve(s string) (*net.TCPAddr, error) {
	addr, err := Parse(s)
	if err != nil {
		return nil, err
	}

	tcp, err := net.ResolveTCPAddr("tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolve, addr, err)
	}
	return tcp, nil
}

// split separates the host from the optional port.
func split(s string) (string, int, error) {
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end == -1 {
			return "", 0, fmt.Errorf("%w: %q: missing ']'", ErrInvalid, s)
		}
		host := s[1:end]
		if ip := net.ParseIP(host); ip == nil || ip.To4() != nil {
			return "", 0, fmt.Errorf("%w: %q: not an IPv6 address", ErrInvalid, s)
		}

		rest := s[end+1:]
		if rest == "" {
			return host, DefaultPort, nil
		}
		portStr, ok := strings.CutPrefix(rest, ":")
		if !ok {
			return "", 0, fmt.Errorf("%w: %q: unexpected %q after ']'", ErrInvalid, s, rest)
		}
		port, err := parsePort(portStr)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %q: %w", ErrInvalid, s, err)
		}
		return host, port, nil
	}

	switch strings.Count(s, ":") {
	case 0:
		return s, DefaultPort, nil
	case 1:
		host, portStr, _ := strings.Cut(s, ":")
		port, err := parsePort(portStr)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %q: %w", ErrInvalid, s, err)
		}
		return host, port, nil
	default:
		return "", 0, fmt.Errorf("%w: %q: IPv6 addresses must be bracketed", ErrInvalid, s)
	}
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("bad port %q", s)
	}
	return port, nil
}

func validateHost(host string) error {
	if strings.Contains(host, ":") {
		// bracketed IPv6, checked by split
		return nil
	}

	if dottedRe.MatchString(host) {
		if ip := net.ParseIP(host); ip == nil || ip.To4() == nil || strings.Count(host, ".") != 3 {
			return errors.New("bad IPv4 address")
		}
		return nil
	}

	name := strings.TrimSuffix(host, ".")
	if name == "" || len(name) > 253 {
		return errors.New("bad domain length")
	}

	labels := strings.Split(name, ".")
	for _, label := range labels {
		if !labelRe.MatchString(label) {
			return fmt.Errorf("bad label %q", label)
		}
	}
	if dottedRe.MatchString(labels[len(labels)-1]) {
		return errors.New("numeric top-level label")
	}
	return nil
}
