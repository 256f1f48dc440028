package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	treeftp "github.com/gzordrai/tree-ftp"
	"github.com/gzordrai/tree-ftp/internal/address"
	"github.com/gzordrai/tree-ftp/tree"
)

func runCrawl(cmd *cobra.Command, s *settings, target string) error {
	logger := newLogger(cmd.ErrOrStderr(), s.logLevel)

	addr, err := address.Resolve(target)
	if err != nil {
		return err
	}

	password := s.password
	if s.askPassword {
		password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	client, err := treeftp.Dial(addr.String(), s.options(logger)...)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Authenticate(s.user, password); err != nil {
		return err
	}

	root, err := client.Crawl(s.depth, s.strategy)
	if err != nil {
		return err
	}
	return write(cmd.OutOrStdout(), root, s)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// readPassword reads one line from in, without echo when in is a terminal.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// write prints root in the configured format.
func write(w io.Writer, root *tree.Directory, s *settings) error {
	switch s.format {
	case formatJSON:
		b, err := json.MarshalIndent(root, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	case formatYAML:
		b, err := yaml.Marshal(root)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		return tree.Render(w, root, tree.RenderOptions{Color: s.color})
	}
}
