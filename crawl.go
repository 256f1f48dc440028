package treeftp

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gzordrai/tree-ftp/tree"
)

// Strategy selects the traversal order of a crawl.
type Strategy int

const (
	// DepthFirst descends into each directory as soon as it is listed.
	DepthFirst Strategy = iota

	// BreadthFirst completes a level before expanding the next one.
	BreadthFirst
)

func (s Strategy) String() string {
	switch s {
	case DepthFirst:
		return "dfs"
	case BreadthFirst:
		return "bfs"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Crawl logs in again, primes the session and enumerates the remote tree
// below the working directory. Directories of the root listing are expanded
// depth more levels; deeper directories are present with no children.
//
// If the control connection is replaced at any point, the pass is dropped
// and the crawl starts over, up to the configured restart limit. A tree is
// only returned from a pass that ran on a single connection.
//
// Example:
//
//	root, err := client.Crawl(2, treeftp.BreadthFirst)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(root)
func (c *Client) Crawl(depth int, strategy Strategy) (*tree.Directory, error) {
	if depth < 0 {
		return nil, fmt.Errorf("negative crawl depth: %d", depth)
	}
	if strategy != DepthFirst && strategy != BreadthFirst {
		return nil, fmt.Errorf("unknown crawl strategy: %s", strategy)
	}

	logger := c.logger.With("crawl_id", uuid.NewString(), "strategy", strategy.String(), "depth", depth)
	logger.Info("starting crawl")

	for restarts := 0; ; restarts++ {
		c.tracker = newTracker(c.progress, restarts)
		a, err := c.crawlOnce(depth, strategy)
		c.tracker = nil

		replaced := c.ctrl.wasReconnected()
		c.ctrl.clearReconnected()

		if err == nil && !replaced {
			root := a.build()
			logger.Info("crawl finished", "nodes", a.count(), "restarts", restarts)
			return root, nil
		}
		if err != nil && !errors.Is(err, ErrReconnected) {
			logger.Error("crawl failed", "error", err, "restarts", restarts)
			return nil, err
		}

		if restarts >= c.maxRestarts {
			return nil, fmt.Errorf("%w: gave up after %d restarts: %w", ErrTooManyRestarts, restarts, ErrReconnected)
		}
		logger.Warn("connection replaced during crawl, starting over", "restart", restarts+1)
	}
}

// crawlOnce runs one pass on the current connection. It stops at the first
// sign that the connection was replaced.
func (c *Client) crawlOnce(depth int, strategy Strategy) (*arena, error) {
	if err := c.login(); err != nil {
		return nil, err
	}
	if _, err := c.RetrieveServerInfo(); err != nil {
		return nil, err
	}

	lines, err := c.listHere()
	if err != nil {
		return nil, err
	}

	a := newArena(".")
	if strategy == BreadthFirst {
		err = c.bfs(a, lines, depth)
	} else {
		err = c.dfs(a, 0, lines, depth)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// listHere lists the working directory, failing with ErrReconnected if the
// control connection was replaced along the way.
func (c *Client) listHere() ([]string, error) {
	lines, err := c.list()
	if err != nil {
		return nil, err
	}
	if c.ctrl.wasReconnected() {
		return nil, ErrReconnected
	}
	c.tracker.listed(len(lines), c.received)
	return lines, nil
}

func (c *Client) dfs(a *arena, dir int, lines []string, depth int) error {
	for _, line := range lines {
		name, isDir, ok := entry(line)
		if !ok {
			continue
		}

		child := a.add(dir, name, isDir)
		if !isDir || depth == 0 || name == "" {
			continue
		}

		entered, err := c.enter(name)
		if err != nil {
			return err
		}
		if !entered {
			continue
		}

		sub, err := c.listHere()
		if err != nil {
			return err
		}
		if err := c.dfs(a, child, sub, depth-1); err != nil {
			return err
		}
		if err := c.leave(1); err != nil {
			return err
		}
	}
	return nil
}

// frame is a directory whose listing is known but whose subdirectories are
// not expanded yet.
type frame struct {
	dir   int
	path  []string
	lines []string
	depth int
}

// bfs expands one frame at a time in FIFO order. Expanding a frame adds its
// entries and lists each subdirectory, which becomes a frame of its own.
// Every frame is expanded from the crawl's starting directory: the client
// walks down its path and back up afterwards.
func (c *Client) bfs(a *arena, lines []string, depth int) error {
	queue := []frame{{dir: 0, lines: lines, depth: depth}}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]

		walked, reached, err := c.walk(f.path)
		if err != nil {
			return err
		}

		for _, line := range f.lines {
			name, isDir, ok := entry(line)
			if !ok {
				continue
			}

			child := a.add(f.dir, name, isDir)
			if !isDir || f.depth == 0 || name == "" || !reached {
				continue
			}

			entered, err := c.enter(name)
			if err != nil {
				return err
			}
			if !entered {
				continue
			}

			sub, err := c.listHere()
			if err != nil {
				return err
			}
			if err := c.leave(1); err != nil {
				return err
			}

			path := append(append([]string(nil), f.path...), name)
			queue = append(queue, frame{dir: child, path: path, lines: sub, depth: f.depth - 1})
		}

		if err := c.leave(walked); err != nil {
			return err
		}
	}
	return nil
}

// walk enters each directory of path in turn. It returns how many were
// entered and whether the whole path was.
func (c *Client) walk(path []string) (int, bool, error) {
	for i, name := range path {
		entered, err := c.enter(name)
		if err != nil {
			return i, false, err
		}
		if !entered {
			return i, false, nil
		}
	}
	return len(path), true, nil
}

// enter changes into the named subdirectory. Only a reply code of 500 or
// above means the directory is kept as a leaf.
func (c *Client) enter(name string) (bool, error) {
	resp, err := c.ctrl.sendCommand(cmdCwd(name))
	if err != nil {
		return false, err
	}
	if c.ctrl.wasReconnected() {
		return false, ErrReconnected
	}

	if resp.Code() >= 500 {
		c.logger.Warn("cannot enter directory", "name", name, "reply", resp.Last().Line)
		return false, nil
	}
	return true, nil
}

// leave goes up n levels.
func (c *Client) leave(n int) error {
	for range n {
		if _, err := c.ctrl.sendCommand(cmdCdup); err != nil {
			return err
		}
		if c.ctrl.wasReconnected() {
			return ErrReconnected
		}
	}
	return nil
}

// arena holds the nodes of a tree under construction. Nodes refer to their
// children by index; index 0 is the root.
type arena struct {
	nodes []arenaNode
}

type arenaNode struct {
	name     string
	dir      bool
	children []int
}

func newArena(root string) *arena {
	return &arena{nodes: []arenaNode{{name: root, dir: true}}}
}

// add appends a node under parent and returns its index.
func (a *arena) add(parent int, name string, dir bool) int {
	a.nodes = append(a.nodes, arenaNode{name: name, dir: dir})
	idx := len(a.nodes) - 1
	a.nodes[parent].children = append(a.nodes[parent].children, idx)
	return idx
}

// count returns the number of nodes below the root.
func (a *arena) count() int {
	return len(a.nodes) - 1
}

func (a *arena) build() *tree.Directory {
	return a.directory(0)
}

func (a *arena) directory(idx int) *tree.Directory {
	n := a.nodes[idx]
	d := tree.NewDirectory(n.name)
	for _, child := range n.children {
		if a.nodes[child].dir {
			d.Add(a.directory(child))
		} else {
			d.Add(tree.NewFile(a.nodes[child].name))
		}
	}
	return d
}
