package treeftp

import (
	"errors"
	"fmt"
)

// Errors returned by the client. They are wrapped with additional context,
// so test for them with errors.Is.
var (
	// ErrConnection is returned when a control or data connection cannot be
	// established.
	ErrConnection = errors.New("ftp: connection failed")

	// ErrReconnectFailed is returned when the control connection could not
	// be re-established within the reconnect budget.
	ErrReconnectFailed = errors.New("ftp: reconnect failed")

	// ErrCommandWrite is returned when a command cannot be written even
	// after reconnecting once.
	ErrCommandWrite = errors.New("ftp: command write failed")

	// ErrCommandFlush is returned when a buffered command cannot be flushed
	// to the connection even after reconnecting once.
	ErrCommandFlush = errors.New("ftp: command flush failed")

	// ErrRead is returned for read failures that are not peer resets.
	ErrRead = errors.New("ftp: read failed")

	// ErrInvalidPassiveResponse is returned when a PASV or EPSV reply cannot
	// be turned into a data endpoint.
	ErrInvalidPassiveResponse = errors.New("ftp: invalid passive response")

	// ErrInvalidParsedIP is returned when the address fields of a PASV reply
	// do not form an IPv4 address.
	ErrInvalidParsedIP = errors.New("ftp: invalid passive address")

	// ErrInvalidParsedPort is returned when the port fields of a PASV or
	// EPSV reply are not a valid TCP port.
	ErrInvalidParsedPort = errors.New("ftp: invalid passive port")

	// ErrNoResponseReceived is returned when the server sends nothing in
	// reply to a command, even after a reconnect and resend.
	ErrNoResponseReceived = errors.New("ftp: no response received")

	// ErrReconnected reports that the control connection was silently
	// replaced while an operation was in progress. The new connection is
	// not logged in and has lost its working directory, so the caller must
	// restart whatever it was doing. Crawl handles it by starting over.
	ErrReconnected = errors.New("ftp: connection was replaced")

	// ErrTooManyRestarts is returned by Crawl when the connection keeps
	// getting replaced and the restart limit is reached.
	ErrTooManyRestarts = errors.New("ftp: too many crawl restarts")
)

// ProtocolError carries the server reply for a command whose reply code
// made the result unusable.
type ProtocolError struct {
	// Command is the FTP command that was sent (e.g., "EPSV")
	Command string

	// Response is the raw reply line received from the server
	Response string

	// Code is the numeric FTP reply code (e.g., 500)
	Code int
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// IsPermanent returns true if the error is a permanent failure (5xx).
func (e *ProtocolError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}
