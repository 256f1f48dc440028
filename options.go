package treeftp

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithTimeout sets the timeout for dialing and for each read or write on
// the control and data connections. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("negative timeout: %s", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithLogger enables logging using the provided logger.
// Commands and replies are logged at debug level, reconnects and crawl
// restarts at warn level.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	client, _ := treeftp.Dial("ftp.example.com:21", treeftp.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithDialer sets a custom net.Dialer for the control and data connections.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) error {
		c.dialer = dialer
		return nil
	}
}

// WithExtendedPassive makes the client negotiate data connections with EPSV
// instead of PASV. The data address is then always the control peer.
func WithExtendedPassive(extended bool) Option {
	return func(c *Client) error {
		c.extended = extended
		return nil
	}
}

// WithReconnectPolicy replaces DefaultReconnectPolicy.
func WithReconnectPolicy(policy ReconnectPolicy) Option {
	return func(c *Client) error {
		if policy.Settle < 0 || policy.Interval < 0 || policy.Budget < 0 {
			return fmt.Errorf("invalid reconnect policy: %+v", policy)
		}
		c.policy = policy
		return nil
	}
}

// WithMaxRestarts bounds how many times Crawl starts over after the
// connection was replaced. The default is 10.
func WithMaxRestarts(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("negative restart limit: %d", n)
		}
		c.maxRestarts = n
		return nil
	}
}

// WithCommandRate limits how many commands per second are sent on the
// control connection. Zero means unlimited.
//
// Example:
//
//	client, _ := treeftp.Dial("ftp.example.com:21",
//	    treeftp.WithCommandRate(5),
//	)
func WithCommandRate(perSecond float64) Option {
	return func(c *Client) error {
		if perSecond < 0 {
			return fmt.Errorf("negative command rate: %v", perSecond)
		}
		c.commandRate = perSecond
		return nil
	}
}

// WithProgress sets a function called after every directory listed by
// Crawl. It runs on the crawling goroutine.
//
// Example:
//
//	client, _ := treeftp.Dial("ftp.example.com:21",
//	    treeftp.WithProgress(func(p treeftp.Progress) {
//	        fmt.Fprintf(os.Stderr, "\r%d directories listed", p.Listings)
//	    }),
//	)
func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) error {
		c.progress = fn
		return nil
	}
}

// WithBandwidthLimit limits how fast listings are read from data
// connections, in bytes per second. Zero means unlimited.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(c *Client) error {
		if bytesPerSecond < 0 {
			return fmt.Errorf("negative bandwidth limit: %d", bytesPerSecond)
		}
		c.bandwidth = bytesPerSecond
		return nil
	}
}
