package treeftp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gzordrai/tree-ftp/internal/ratelimit"
)

// maxBlankPassiveReplies bounds how often a passive command is resent when
// the server answers with a stray blank line.
const maxBlankPassiveReplies = 3

// Client is a crawling FTP client. It owns one control connection and at
// most one live data connection. A Client is not safe for concurrent use.
type Client struct {
	// ctrl is the reconnectable control connection
	ctrl *controlChannel

	// data is the data connection of the current passive negotiation
	data *dataChannel

	// lastData is the most recently negotiated data endpoint
	lastData *net.TCPAddr

	// received is the size of the last listing in bytes
	received int64

	// tracker reports the progress of the running crawl pass
	tracker *tracker

	// greeting is the reply read when the control connection was opened
	greeting Responses

	// credentials replayed at the start of every crawl
	user string
	pass string

	extended    bool
	timeout     time.Duration
	dialer      *net.Dialer
	logger      *slog.Logger
	policy      ReconnectPolicy
	maxRestarts int
	commandRate float64
	bandwidth   int64
	progress    ProgressFunc
}

// ServerInfo is what RetrieveServerInfo learned about the server.
type ServerInfo struct {
	// System is the SYST reply text (e.g., "UNIX Type: L8")
	System string

	// Features maps FEAT feature names to their parameters
	Features map[string]string

	// WorkingDir is the directory reported by PWD
	WorkingDir string
}

// Dial connects to an FTP server at the given address and reads its
// greeting. The address should be in the form "host:port".
//
// Example:
//
//	client, err := treeftp.Dial("ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
func Dial(addr string, options ...Option) (*Client, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	c := &Client{
		user:        "anonymous",
		pass:        "anonymous",
		timeout:     30 * time.Second,
		dialer:      &net.Dialer{},
		logger:      slog.New(slog.DiscardHandler),
		policy:      DefaultReconnectPolicy,
		maxRestarts: 10,
	}

	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	c.dialer.Timeout = c.timeout

	ctrl, greeting, err := dialControl(addr, c.dialer, c.timeout, c.policy,
		ratelimit.NewPacer(c.commandRate), c.logger)
	if err != nil {
		return nil, err
	}
	c.ctrl = ctrl
	c.greeting = greeting

	c.logger.Info("connected to the server", "addr", addr, "greeting", greeting.Last().Line)

	return c, nil
}

// Greeting returns the reply the server sent when the connection was opened.
func (c *Client) Greeting() Responses {
	return c.greeting
}

// Authenticate sends USER and PASS.
//
// Reply codes are not interpreted: a rejected login is not reported here
// and only transport failures return an error. The credentials are kept
// and replayed at the start of every Crawl.
func (c *Client) Authenticate(username, password string) error {
	c.user = username
	c.pass = password
	return c.login()
}

func (c *Client) login() error {
	c.logger.Info("starting authentication", "user", c.user)

	if _, err := c.ctrl.sendCommand(cmdUser(c.user)); err != nil {
		return err
	}
	resp, err := c.ctrl.sendCommand(cmdPass(c.pass))
	if err != nil {
		return err
	}

	c.logger.Info("authentication finished", "user", c.user, "code", resp.Code())
	return nil
}

// RetrieveServerInfo sends SYST, FEAT, PWD and TYPE I. The replies are
// informational; only transport failures return an error.
func (c *Client) RetrieveServerInfo() (*ServerInfo, error) {
	c.logger.Info("retrieving server information")

	syst, err := c.ctrl.sendCommand(cmdSyst)
	if err != nil {
		return nil, err
	}
	feat, err := c.ctrl.sendCommand(cmdFeat)
	if err != nil {
		return nil, err
	}
	pwd, err := c.ctrl.sendCommand(cmdPwd)
	if err != nil {
		return nil, err
	}
	if _, err := c.ctrl.sendCommand(cmdType("I")); err != nil {
		return nil, err
	}

	info := &ServerInfo{
		System:     replyText(syst.Last().Line),
		Features:   parseFeatureLines(feat.Lines()),
		WorkingDir: parseQuoted(pwd.Last().Line),
	}
	c.logger.Info("server information retrieved",
		"system", info.System,
		"features", len(info.Features),
		"pwd", info.WorkingDir,
	)

	return info, nil
}

// PassiveMode negotiates a data connection with PASV, or EPSV when the
// client was configured with WithExtendedPassive, and opens it. Any previous
// data connection is closed.
//
// A stray blank reply line makes the command be sent again, up to three
// times. An empty reply means the control connection was replaced; the
// command is sent once more on the new connection. Since the session state
// is gone after that, the result is ErrReconnected, or ErrNoResponseReceived
// if the resend got nothing either.
func (c *Client) PassiveMode() error {
	cmd := cmdPasv
	if c.extended {
		cmd = cmdEpsv
	}

	var resp Responses
	resent := false
	for blanks := 0; ; {
		var err error
		resp, err = c.ctrl.sendCommand(cmd)
		if len(resp) == 0 && (err == nil || errors.Is(err, ErrReconnected)) {
			if resent {
				return fmt.Errorf("%w: %s", ErrNoResponseReceived, cmd.verb)
			}
			if err == nil {
				c.logger.Warn("no reply to passive command, reconnecting", "cmd", cmd.verb)
				if err := c.ctrl.reconnect(); err != nil {
					return err
				}
			} else {
				c.logger.Warn("no reply to passive command, resending on the new connection", "cmd", cmd.verb)
			}
			resent = true
			continue
		}
		if err != nil {
			return err
		}

		if resp.Last().Line == "" && blanks < maxBlankPassiveReplies {
			blanks++
			c.logger.Debug("blank reply to passive command, resending", "cmd", cmd.verb)
			continue
		}
		break
	}

	if resent {
		return ErrReconnected
	}

	last := resp.Last()
	if last.Code >= 400 {
		return fmt.Errorf("%w: %w", ErrInvalidPassiveResponse, &ProtocolError{
			Command:  cmd.verb,
			Response: last.Line,
			Code:     last.Code,
		})
	}

	addr, err := negotiatePassive(last.Line, c.extended, c.ctrl.peerIP(), c.lastData)
	if err != nil {
		return err
	}

	c.closeData()
	data, err := openDataChannel(c.dialer, addr, c.timeout, c.bandwidth, c.logger)
	if err != nil {
		return err
	}
	c.data = data
	c.lastData = addr

	return nil
}

// list negotiates a data connection, sends LIST and returns the listing
// lines of the current directory. A LIST rejected by the server yields an
// empty listing.
func (c *Client) list() ([]string, error) {
	if err := c.PassiveMode(); err != nil {
		return nil, err
	}
	c.received = 0

	resp, err := c.ctrl.sendCommand(cmdList)
	if err != nil {
		c.closeData()
		return nil, err
	}

	if resp.Code() >= 400 && !transferStarted(resp) {
		c.logger.Warn("listing rejected", "code", resp.Code(), "reply", resp.Last().Line)
		c.closeData()
		return nil, nil
	}

	lines, err := c.data.readResponses()
	c.received = c.data.received()
	c.closeData()
	if err != nil {
		return nil, err
	}

	if resp.Code() >= 400 {
		c.logger.Warn("listing aborted", "code", resp.Code(), "reply", resp.Last().Line)
		return nil, nil
	}
	return lines.Lines(), nil
}

// transferStarted reports whether the reply opened with a 1xx mark.
func transferStarted(resp Responses) bool {
	return len(resp) > 0 && resp[0].Code >= 100 && resp[0].Code < 200
}

func (c *Client) closeData() {
	if c.data != nil {
		_ = c.data.close()
		c.data = nil
	}
}

// Close sends QUIT without waiting for the reply and closes the data and
// control connections.
func (c *Client) Close() error {
	c.closeData()
	if c.ctrl == nil {
		return nil
	}

	_ = c.ctrl.write(cmdQuit)
	return c.ctrl.close()
}

// replyText strips the reply code from a reply line.
func replyText(line string) string {
	if len(line) > 4 && replyCode(line) != 0 {
		return line[4:]
	}
	return line
}

// parseQuoted extracts the quoted path of a PWD reply.
// Example: 257 "/home/user" is the current directory
func parseQuoted(line string) string {
	start := strings.Index(line, "\"")
	if start == -1 {
		return ""
	}
	end := strings.Index(line[start+1:], "\"")
	if end == -1 {
		return ""
	}
	return line[start+1 : start+1+end]
}

// parseFeatureLines parses the lines of a FEAT reply.
// Supports both formats:
// - RFC 2389: "211-Features:\r\n FEAT1\r\n FEAT2 params\r\n211 End"
// - Traditional: "211-Features\r\n211-FEAT1\r\n211-FEAT2 params\r\n211 End"
func parseFeatureLines(lines []string) map[string]string {
	features := make(map[string]string)
	for i, line := range lines {
		var featureLine string
		switch {
		case len(line) > 0 && line[0] == ' ':
			featureLine = strings.TrimSpace(line)
		case i > 0 && i < len(lines)-1 && len(line) >= 4 && line[3] == '-':
			featureLine = strings.TrimSpace(line[4:])
		default:
			continue
		}

		if featureLine == "" {
			continue
		}

		name, params, _ := strings.Cut(featureLine, " ")
		features[strings.ToUpper(name)] = params
	}
	return features
}
