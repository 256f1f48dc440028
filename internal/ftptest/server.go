// Package ftptest runs a small in-memory FTP server for tests.
//
// The server understands the commands a crawler needs (USER, PASS, SYST,
// FEAT, PWD, TYPE, PASV, EPSV, LIST, CWD, CDUP and QUIT) and serves a fixed
// directory tree described by an FS. Faults can be scheduled to reset or
// close connections when a given command arrives, so reconnect handling can
// be exercised against real sockets.
package ftptest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path"
	"slices"
	"strings"
	"sync"
	"time"
)

// FS maps absolute directory paths to their entries. A name ending in "/"
// is a subdirectory; a subdirectory without its own key is empty.
//
//	ftptest.FS{
//	    "/":     {"pub/", "readme.txt"},
//	    "/pub":  {"a.bin"},
//	}
type FS map[string][]string

// Action is what a Fault does to the connection.
type Action int

const (
	// Reset aborts the control connection with a TCP reset instead of
	// replying.
	Reset Action = iota

	// Close closes the control connection cleanly instead of replying.
	Close

	// ResetData aborts the data connection in the middle of a LIST
	// transfer, then answers 426 on the control connection.
	ResetData
)

// Fault triggers Action the After-th time Command is received, counted
// across all connections. After defaults to 1.
type Fault struct {
	Command string
	After   int
	Action  Action

	seen int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger logs sessions and commands.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCredentials makes PASS answer 530 unless the given user and password
// were sent. Later commands are still served.
func WithCredentials(user, pass string) Option {
	return func(s *Server) {
		s.user = user
		s.pass = pass
	}
}

// WithFaults schedules faults.
func WithFaults(faults ...Fault) Option {
	return func(s *Server) {
		for _, f := range faults {
			if f.After <= 0 {
				f.After = 1
			}
			s.faults = append(s.faults, &f)
		}
	}
}

// WithPassiveHost replaces the address advertised in PASV replies, for
// example with "0.0.0.0".
func WithPassiveHost(ip string) Option {
	return func(s *Server) {
		s.passiveHost = ip
	}
}

// WithDotEntries adds "." and ".." to every listing.
func WithDotEntries() Option {
	return func(s *Server) {
		s.dotEntries = true
	}
}

// WithDenied makes CWD into the given directories fail with 550.
func WithDenied(paths ...string) Option {
	return func(s *Server) {
		s.denied = append(s.denied, paths...)
	}
}

// WithUnreadable makes LIST in the given directories fail with 550.
func WithUnreadable(paths ...string) Option {
	return func(s *Server) {
		s.unreadable = append(s.unreadable, paths...)
	}
}

// Server is a running test server.
type Server struct {
	fs     FS
	ln     net.Listener
	logger *slog.Logger

	user, pass  string
	passiveHost string
	dotEntries  bool
	denied      []string
	unreadable  []string

	mu          sync.Mutex
	faults      []*Fault
	commands    []string
	connections int
	conns       map[net.Conn]struct{}
	closed      bool

	wg sync.WaitGroup
}

// New starts a server for fs on a loopback port.
func New(fs FS, options ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	s := &Server{
		fs:     fs,
		ln:     ln,
		logger: slog.New(slog.DiscardHandler),
		conns:  make(map[net.Conn]struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Addr returns the control address in "host:port" form.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Commands returns every command line received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.commands)
}

// Count returns how many times verb was received.
func (s *Server) Count(verb string) int {
	n := 0
	for _, line := range s.Commands() {
		v, _, _ := strings.Cut(line, " ")
		if v == verb {
			n++
		}
	}
	return n
}

// Connections returns how many control connections were accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Close stops accepting connections and closes the open ones.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept error", "error", err)
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			newSession(s, conn).serve()
		}()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.connections++
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// record logs a command line and returns the fault it triggers, if any.
func (s *Server) record(verb, line string) *Fault {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, line)
	for _, f := range s.faults {
		if f.Command != verb {
			continue
		}
		f.seen++
		if f.seen == f.After {
			return f
		}
	}
	return nil
}

// isDir reports whether p names a directory of the tree.
func (s *Server) isDir(p string) bool {
	if p == "/" {
		return true
	}
	if _, ok := s.fs[p]; ok {
		return true
	}
	return slices.Contains(s.fs[path.Dir(p)], path.Base(p)+"/")
}

func (s *Server) listing(dir string) []string {
	var lines []string
	if s.dotEntries {
		lines = append(lines, listLine(".", true), listLine("..", true))
	}
	for _, name := range s.fs[dir] {
		if sub, ok := strings.CutSuffix(name, "/"); ok {
			lines = append(lines, listLine(sub, true))
		} else {
			lines = append(lines, listLine(name, false))
		}
	}
	return lines
}

func listLine(name string, dir bool) string {
	if dir {
		return "drwxr-xr-x    2 ftp      ftp          4096 Jan 02 15:04 " + name
	}
	return "-rw-r--r--    1 ftp      ftp          1024 Jan 02 15:04 " + name
}

// commandHandlers maps FTP commands to their handler functions.
// QUIT is handled in handleCommand.
var commandHandlers = map[string]func(*session, string){
	"USER": (*session).handleUSER,
	"PASS": (*session).handlePASS,
	"SYST": (*session).handleSYST,
	"FEAT": (*session).handleFEAT,
	"PWD":  (*session).handlePWD,
	"TYPE": (*session).handleTYPE,
	"PASV": (*session).handlePASV,
	"EPSV": (*session).handleEPSV,
	"LIST": (*session).handleLIST,
	"CWD":  (*session).handleCWD,
	"CDUP": (*session).handleCDUP,
}

type session struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	user     string
	cwd      string
	pasvList net.Listener
	fault    *Fault
}

func newSession(server *Server, conn net.Conn) *session {
	return &session{
		server: server,
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		cwd:    "/",
	}
}

func (s *session) serve() {
	defer func() {
		if s.pasvList != nil {
			s.pasvList.Close()
		}
	}()

	s.reply(220, "ftptest ready")

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				s.server.logger.Debug("read error", "error", err)
			}
			return
		}
		if !s.handleCommand(strings.TrimRight(line, "\r\n")) {
			return
		}
	}
}

// handleCommand dispatches one command line. It returns false once the
// connection is finished.
func (s *session) handleCommand(line string) bool {
	if line == "" {
		return true
	}

	verb, arg, _ := strings.Cut(line, " ")
	verb = strings.ToUpper(verb)
	s.server.logger.Debug("command received", "cmd", verb, "arg", arg)

	s.fault = s.server.record(verb, line)
	if s.fault != nil {
		switch s.fault.Action {
		case Reset:
			s.reset()
			return false
		case Close:
			s.conn.Close()
			return false
		}
	}

	if verb == "QUIT" {
		s.reply(221, "Goodbye.")
		return false
	}

	if handler, ok := commandHandlers[verb]; ok {
		handler(s, arg)
	} else {
		s.reply(502, "Command not implemented.")
	}
	return true
}

// reset closes the control connection with a RST.
func (s *session) reset() {
	if tcp, ok := s.conn.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	s.conn.Close()
}

func (s *session) reply(code int, message string) {
	fmt.Fprintf(s.writer, "%d %s\r\n", code, message)
	s.writer.Flush()
}

func (s *session) handleUSER(arg string) {
	s.user = arg
	s.reply(331, "Please specify the password.")
}

func (s *session) handlePASS(arg string) {
	if s.server.user != "" && (s.user != s.server.user || arg != s.server.pass) {
		s.reply(530, "Login incorrect.")
		return
	}
	s.reply(230, "Login successful.")
}

func (s *session) handleSYST(_ string) {
	s.reply(215, "UNIX Type: L8")
}

func (s *session) handleFEAT(_ string) {
	fmt.Fprintf(s.writer, "211-Features:\r\n EPSV\r\n PASV\r\n UTF8\r\n211 End\r\n")
	s.writer.Flush()
}

func (s *session) handlePWD(_ string) {
	s.reply(257, fmt.Sprintf("%q is the current directory", s.cwd))
}

func (s *session) handleTYPE(arg string) {
	if strings.ToUpper(arg) == "I" {
		s.reply(200, "Switching to Binary mode.")
		return
	}
	s.reply(200, "Switching to ASCII mode.")
}

func (s *session) listenPassive() (int, bool) {
	if s.pasvList != nil {
		s.pasvList.Close()
		s.pasvList = nil
	}

	host, _, _ := net.SplitHostPort(s.conn.LocalAddr().String())
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		s.reply(425, "Can't open passive connection.")
		return 0, false
	}
	s.pasvList = ln
	return ln.Addr().(*net.TCPAddr).Port, true
}

func (s *session) handlePASV(_ string) {
	port, ok := s.listenPassive()
	if !ok {
		return
	}

	host := s.server.passiveHost
	if host == "" {
		host, _, _ = net.SplitHostPort(s.conn.LocalAddr().String())
	}
	s.reply(227, fmt.Sprintf("Entering Passive Mode (%s,%d,%d).",
		strings.ReplaceAll(host, ".", ","), port/256, port%256))
}

func (s *session) handleEPSV(_ string) {
	port, ok := s.listenPassive()
	if !ok {
		return
	}
	s.reply(229, fmt.Sprintf("Entering Extended Passive Mode (|||%d|)", port))
}

func (s *session) handleLIST(_ string) {
	if s.pasvList == nil {
		s.reply(425, "Use PASV or EPSV first.")
		return
	}
	ln := s.pasvList
	s.pasvList = nil
	defer ln.Close()

	if !s.server.isDir(s.cwd) || slices.Contains(s.server.unreadable, s.cwd) {
		s.reply(550, "Failed to open directory.")
		return
	}

	if tcp, ok := ln.(*net.TCPListener); ok {
		_ = tcp.SetDeadline(time.Now().Add(5 * time.Second))
	}
	conn, err := ln.Accept()
	if err != nil {
		s.reply(425, "Can't open data connection.")
		return
	}

	s.reply(150, "Here comes the directory listing.")

	lines := s.server.listing(s.cwd)
	if s.fault != nil && s.fault.Action == ResetData {
		half := lines[:len(lines)/2]
		for _, line := range half {
			fmt.Fprintf(conn, "%s\r\n", line)
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetLinger(0)
		}
		conn.Close()
		s.reply(426, "Connection closed; transfer aborted.")
		return
	}

	w := bufio.NewWriter(conn)
	for _, line := range lines {
		fmt.Fprintf(w, "%s\r\n", line)
	}
	w.Flush()
	conn.Close()

	s.reply(226, "Directory send OK.")
}

func (s *session) resolve(arg string) string {
	if strings.HasPrefix(arg, "/") {
		return path.Clean(arg)
	}
	return path.Join(s.cwd, arg)
}

func (s *session) changeDir(target string) {
	if !s.server.isDir(target) || slices.Contains(s.server.denied, target) {
		s.reply(550, "Failed to change directory.")
		return
	}
	s.cwd = target
	s.reply(250, "Directory successfully changed.")
}

func (s *session) handleCWD(arg string) {
	s.changeDir(s.resolve(arg))
}

func (s *session) handleCDUP(_ string) {
	s.changeDir(path.Dir(s.cwd))
}
