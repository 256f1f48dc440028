// Package treeftp crawls the directory tree of an FTP server.
//
// # Overview
//
// A Client owns one control connection and, while a listing is being
// transferred, one passive data connection. Crawl walks the remote tree
// below the login directory with CWD, LIST and CDUP, up to a bounded depth,
// and returns it as a tree.Directory:
//
//	client, err := treeftp.Dial("ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Authenticate("anonymous", "anonymous"); err != nil {
//	    log.Fatal(err)
//	}
//
//	root, err := client.Crawl(2, treeftp.DepthFirst)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(root)
//
// # Traversal
//
// DepthFirst descends into each directory as soon as it appears in a
// listing. BreadthFirst lists every subdirectory of a level before going
// deeper, walking down from the starting directory for each queued entry.
// Both produce the same tree. Directories beyond the depth limit are kept
// with no children, as are directories the server refuses to enter.
//
// Listings must be in Unix "ls -l" format: an entry is a directory when its
// line starts with 'd', and its name is everything from the ninth field on.
//
// # Passive Mode
//
// Data connections are negotiated with PASV by default, or with EPSV when
// WithExtendedPassive is set. A PASV reply advertising 0.0.0.0 is taken to
// mean the control connection's peer, and EPSV always uses that peer.
//
// # Connection Recovery
//
// When the server resets the control connection, or closes it before
// answering a command, the client reconnects at a fixed interval until
// ReconnectPolicy.Budget runs out. The new
// connection is not logged in and has lost its working directory, so the
// operation in progress fails with ErrReconnected. Crawl reacts by starting
// over from a fresh login, and never returns a tree assembled across two
// connections. WithMaxRestarts bounds how often that can happen.
//
// # Authentication
//
// Authenticate does not interpret reply codes: a rejected login is only
// noticed later, when listings come back empty or refused. Only transport
// failures are reported as errors.
//
// # Logging
//
// The client logs through log/slog. Pass a logger with WithLogger; nothing
// is logged by default.
package treeftp
