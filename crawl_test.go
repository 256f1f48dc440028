package treeftp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/gzordrai/tree-ftp/internal/ftptest"
	"github.com/gzordrai/tree-ftp/tree"
)

var crawlFS = ftptest.FS{
	"/":                {"docs/", "empty/", "notes.txt"},
	"/docs":            {"guide/", "readme.txt"},
	"/docs/guide":      {"deep/", "intro.md"},
	"/docs/guide/deep": {"bottom.txt"},
}

var fullTree = strings.Join([]string{
	".",
	"├── docs",
	"│   ├── guide",
	"│   │   ├── deep",
	"│   │   │   └── bottom.txt",
	"│   │   └── intro.md",
	"│   └── readme.txt",
	"├── empty",
	"└── notes.txt",
	"",
}, "\n")

type CrawlSuite struct {
	suite.Suite
}

func TestCrawlSuite(t *testing.T) {
	suite.Run(t, new(CrawlSuite))
}

func (s *CrawlSuite) server(options ...ftptest.Option) *ftptest.Server {
	srv, err := ftptest.New(crawlFS, options...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { srv.Close() })
	return srv
}

func (s *CrawlSuite) dial(srv *ftptest.Server, options ...Option) *Client {
	options = append([]Option{WithReconnectPolicy(fastPolicy)}, options...)
	c, err := Dial(srv.Addr(), options...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { c.Close() })
	return c
}

func (s *CrawlSuite) crawl(c *Client, depth int, strategy Strategy) *tree.Directory {
	root, err := c.Crawl(depth, strategy)
	s.Require().NoError(err)
	s.Require().NotNil(root)
	return root
}

func (s *CrawlSuite) TestDepthFirst() {
	c := s.dial(s.server())
	s.Equal(fullTree, s.crawl(c, 3, DepthFirst).String())
}

func (s *CrawlSuite) TestBreadthFirst() {
	c := s.dial(s.server())
	s.Equal(fullTree, s.crawl(c, 3, BreadthFirst).String())
}

func (s *CrawlSuite) TestStrategiesAgree() {
	for depth := range 5 {
		c := s.dial(s.server())
		dfs := s.crawl(c, depth, DepthFirst)
		bfs := s.crawl(c, depth, BreadthFirst)
		s.ElementsMatch(tree.Names(dfs), tree.Names(bfs), "depth %d", depth)
	}
}

func (s *CrawlSuite) TestDepthZero() {
	c := s.dial(s.server())
	root := s.crawl(c, 0, DepthFirst)

	s.Equal(".\n├── docs\n├── empty\n└── notes.txt\n", root.String())
	for _, n := range root.Nodes() {
		if dir, ok := n.(*tree.Directory); ok {
			s.Zero(dir.Len(), "%s should have no children", dir.Name())
		}
	}
}

func (s *CrawlSuite) TestDepthBound() {
	tests := []struct {
		depth int
		names []string
	}{
		{1, []string{"docs", "docs/guide", "docs/readme.txt", "empty", "notes.txt"}},
		{2, []string{
			"docs", "docs/guide", "docs/guide/deep", "docs/guide/intro.md",
			"docs/readme.txt", "empty", "notes.txt",
		}},
	}

	for _, tt := range tests {
		for _, strategy := range []Strategy{DepthFirst, BreadthFirst} {
			c := s.dial(s.server())
			root := s.crawl(c, tt.depth, strategy)
			s.ElementsMatch(tt.names, tree.Names(root), "depth %d %s", tt.depth, strategy)
		}
	}
}

func (s *CrawlSuite) TestReturnsToStartingDirectory() {
	srv := s.server()
	c := s.dial(srv)
	s.crawl(c, 3, BreadthFirst)

	s.Equal(srv.Count("CWD"), srv.Count("CDUP"))
	resp, err := c.ctrl.sendCommand(cmdPwd)
	s.Require().NoError(err)
	s.Equal(`257 "/" is the current directory`, resp.Last().Line)
}

func (s *CrawlSuite) TestIdempotent() {
	srv := s.server()
	c := s.dial(srv)

	first := s.crawl(c, 3, DepthFirst)
	second := s.crawl(c, 3, DepthFirst)
	s.Equal(first.String(), second.String())

	s.Equal(2, srv.Count("USER"), "every crawl logs in again")
	s.Equal(2, srv.Count("SYST"))
	s.Equal(1, srv.Connections())
}

func (s *CrawlSuite) TestControlResetRestartsCrawl() {
	for _, strategy := range []Strategy{DepthFirst, BreadthFirst} {
		srv := s.server(ftptest.WithFaults(ftptest.Fault{Command: "CWD", After: 2, Action: ftptest.Reset}))
		c := s.dial(srv)

		root := s.crawl(c, 3, strategy)
		s.Equal(tree.Names(s.crawl(s.dial(s.server()), 3, strategy)), tree.Names(root))
		s.Equal(8, tree.Count(root), "the interrupted pass leaves nothing behind")

		s.Equal(2, srv.Connections(), "%s", strategy)
		s.Equal(2, srv.Count("USER"), "the restarted pass logs in again")
		s.False(c.ctrl.wasReconnected(), "Crawl clears the reconnect flag")
	}
}

func (s *CrawlSuite) TestControlCloseRestartsCrawl() {
	for _, strategy := range []Strategy{DepthFirst, BreadthFirst} {
		srv := s.server(ftptest.WithFaults(ftptest.Fault{Command: "CWD", After: 2, Action: ftptest.Close}))
		c := s.dial(srv)

		s.Equal(fullTree, s.crawl(c, 3, strategy).String(), "%s", strategy)
		s.Equal(2, srv.Connections(), "%s", strategy)
		s.Equal(2, srv.Count("USER"))
	}
}

func (s *CrawlSuite) TestControlCloseOnCdupRestartsCrawl() {
	srv := s.server(ftptest.WithFaults(ftptest.Fault{Command: "CDUP", After: 1, Action: ftptest.Close}))
	c := s.dial(srv)

	s.Equal(fullTree, s.crawl(c, 3, DepthFirst).String())
	s.Equal(2, srv.Connections())
}

func (s *CrawlSuite) TestDataResetRestartsCrawl() {
	srv := s.server(ftptest.WithFaults(ftptest.Fault{Command: "LIST", After: 2, Action: ftptest.ResetData}))
	c := s.dial(srv)

	s.Equal(fullTree, s.crawl(c, 3, DepthFirst).String())
	s.Equal(1, srv.Connections(), "a data reset keeps the control connection")
	s.Equal(2, srv.Count("USER"))
}

func (s *CrawlSuite) TestSilentPassiveReplyReconnects() {
	srv := s.server(ftptest.WithFaults(ftptest.Fault{Command: "PASV", After: 3, Action: ftptest.Close}))
	c := s.dial(srv)

	s.Equal(fullTree, s.crawl(c, 3, DepthFirst).String())
	s.Equal(2, srv.Connections())
}

func (s *CrawlSuite) TestTooManyRestarts() {
	srv := s.server(ftptest.WithFaults(ftptest.Fault{Command: "CWD", Action: ftptest.Reset}))
	c := s.dial(srv, WithMaxRestarts(0))

	root, err := c.Crawl(3, DepthFirst)
	s.Nil(root, "no partial tree is returned")
	s.ErrorIs(err, ErrTooManyRestarts)
	s.ErrorIs(err, ErrReconnected)
}

func (s *CrawlSuite) TestExtendedPassive() {
	srv := s.server()
	c := s.dial(srv, WithExtendedPassive(true))

	s.Equal(fullTree, s.crawl(c, 3, BreadthFirst).String())
	s.Zero(srv.Count("PASV"))
	s.Positive(srv.Count("EPSV"))
}

func (s *CrawlSuite) TestUnspecifiedPassiveAddress() {
	c := s.dial(s.server(ftptest.WithPassiveHost("0.0.0.0")))
	s.Equal(fullTree, s.crawl(c, 3, DepthFirst).String())
}

func (s *CrawlSuite) TestDotEntriesSkipped() {
	c := s.dial(s.server(ftptest.WithDotEntries()))
	s.Equal(fullTree, s.crawl(c, 3, DepthFirst).String())
}

func (s *CrawlSuite) TestDeniedDirectoryIsALeaf() {
	srv := s.server(ftptest.WithDenied("/docs/guide"))
	c := s.dial(srv)

	for _, strategy := range []Strategy{DepthFirst, BreadthFirst} {
		root := s.crawl(c, 3, strategy)
		s.ElementsMatch([]string{
			"docs", "docs/guide", "docs/readme.txt", "empty", "notes.txt",
		}, tree.Names(root), "%s", strategy)
	}
}

func (s *CrawlSuite) TestPermissiveAuthentication() {
	srv := s.server(ftptest.WithCredentials("alice", "secret"))
	c := s.dial(srv)

	// A rejected login is not reported; only transport errors are.
	s.NoError(c.Authenticate("alice", "wrong"))
	s.Equal(fullTree, s.crawl(c, 3, DepthFirst).String())
	s.Contains(srv.Commands(), "PASS wrong", "stored credentials are replayed")
}

func (s *CrawlSuite) TestProgress() {
	for _, strategy := range []Strategy{DepthFirst, BreadthFirst} {
		var reports []Progress
		c := s.dial(s.server(), WithProgress(func(p Progress) { reports = append(reports, p) }))
		s.crawl(c, 3, strategy)

		s.Require().Len(reports, 5, "one report per listing (%s)", strategy)
		last := reports[len(reports)-1]
		s.Equal(5, last.Listings)
		s.Equal(8, last.Lines)
		s.Zero(last.Restarts)
		s.Positive(last.Bytes)
		for i := 1; i < len(reports); i++ {
			s.GreaterOrEqual(reports[i].Bytes, reports[i-1].Bytes)
		}
	}
}

func (s *CrawlSuite) TestProgressAfterRestart() {
	var last Progress
	srv := s.server(ftptest.WithFaults(ftptest.Fault{Command: "CWD", After: 2, Action: ftptest.Reset}))
	c := s.dial(srv, WithProgress(func(p Progress) { last = p }))
	s.crawl(c, 3, DepthFirst)

	s.Equal(1, last.Restarts)
	s.Equal(5, last.Listings, "counters start again on the new pass")
}

func TestCrawl_InvalidArguments(t *testing.T) {
	t.Parallel()
	srv := newFTPServer(t, crawlFS)
	c, err := Dial(srv.Addr())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Crawl(-1, DepthFirst)
	assert.Error(t, err)
	_, err = c.Crawl(1, Strategy(7))
	assert.Error(t, err)
	assert.Zero(t, srv.Count("USER"), "nothing is sent for invalid arguments")
}

func TestStrategy_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "dfs", DepthFirst.String())
	assert.Equal(t, "bfs", BreadthFirst.String())
	assert.Equal(t, "Strategy(7)", Strategy(7).String())
}

func TestArena(t *testing.T) {
	t.Parallel()
	a := newArena(".")
	docs := a.add(0, "docs", true)
	a.add(docs, "readme.txt", false)
	a.add(0, "empty", true)
	a.add(0, "notes.txt", false)

	assert.Equal(t, 4, a.count())
	assert.Equal(t, ".\n├── docs\n│   └── readme.txt\n├── empty\n└── notes.txt\n", a.build().String())
}
