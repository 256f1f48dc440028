package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const (
	branch     = "├── "
	lastBranch = "└── "
	pipe       = "│   "
	blank      = "    "
)

// RenderOptions controls Render.
type RenderOptions struct {
	// Color highlights directory names, whether or not the output is a
	// terminal.
	Color bool
}

// Render writes root as an indented tree: the root name on the first line,
// then one line per node with box-drawing connectors.
//
//	.
//	├── docs
//	│   └── readme.txt
//	└── pub
//
// The continuation under a non-last entry is "│   ", four columns wide to
// line up with the connectors. Output from older tree-ftp releases used
// five columns ("│    ") there; TextNames reads the four-column form.
func Render(w io.Writer, root *Directory, opts RenderOptions) error {
	dirColor := color.New(color.FgBlue, color.Bold)
	if opts.Color {
		dirColor.EnableColor()
	} else {
		dirColor.DisableColor()
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, root.Name())
	renderChildren(bw, root, "", dirColor)
	return bw.Flush()
}

func renderChildren(w *bufio.Writer, d *Directory, indent string, dirColor *color.Color) {
	for i, node := range d.nodes {
		last := i == len(d.nodes)-1

		connector, next := branch, pipe
		if last {
			connector, next = lastBranch, blank
		}

		dir, isDir := node.(*Directory)
		if !isDir {
			fmt.Fprintf(w, "%s%s%s\n", indent, connector, node.Name())
			continue
		}

		fmt.Fprintf(w, "%s%s%s\n", indent, connector, dirColor.Sprint(dir.Name()))
		renderChildren(w, dir, indent+next, dirColor)
	}
}

// String renders the directory without color.
func (d *Directory) String() string {
	var b strings.Builder
	_ = Render(&b, d, RenderOptions{})
	return b.String()
}

// TextNames parses the output of an uncolored Render and returns the same
// paths Names would return for the rendered tree.
func TextNames(s string) ([]string, error) {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, errors.New("empty tree text")
	}

	var (
		names []string
		stack []string
	)
	for i, line := range lines[1:] {
		depth := 0
		for {
			if rest, ok := strings.CutPrefix(line, pipe); ok {
				line = rest
			} else if rest, ok := strings.CutPrefix(line, blank); ok {
				line = rest
			} else {
				break
			}
			depth++
		}

		name, ok := strings.CutPrefix(line, branch)
		if !ok {
			name, ok = strings.CutPrefix(line, lastBranch)
		}
		if !ok || depth > len(stack) {
			return nil, fmt.Errorf("malformed tree line %d: %q", i+2, lines[i+1])
		}

		stack = append(stack[:depth], name)
		names = append(names, strings.Join(stack, "/"))
	}
	return names, nil
}
