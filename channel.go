package treeftp

import "time"

// channel is the capability shared by the control and data connections.
//
// readResponses never reports a peer reset as a failure. On the control
// connection, neither is a connection closed before any reply. It reconnects and
// returns ErrReconnected with no responses, and the caller re-issues
// whatever it was doing. The reconnected flag stays set until the
// orchestrating client clears it.
type channel interface {
	readResponses() (Responses, error)
	reconnect() error
	wasReconnected() bool
	clearReconnected()
	close() error
}

var (
	_ channel = (*controlChannel)(nil)
	_ channel = (*dataChannel)(nil)
)

// ReconnectPolicy controls how a dropped control connection is
// re-established. Attempts are made at a fixed interval with no backoff.
type ReconnectPolicy struct {
	// Settle is how long to wait before the first attempt.
	Settle time.Duration

	// Interval is the pause between failed attempts.
	Interval time.Duration

	// Budget is the total time allowed before giving up with
	// ErrReconnectFailed.
	Budget time.Duration
}

// DefaultReconnectPolicy waits 5 seconds, then retries every 5 seconds for
// up to 5 minutes.
var DefaultReconnectPolicy = ReconnectPolicy{
	Settle:   5 * time.Second,
	Interval: 5 * time.Second,
	Budget:   5 * time.Minute,
}
