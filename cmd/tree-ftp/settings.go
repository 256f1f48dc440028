package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	treeftp "github.com/gzordrai/tree-ftp"
)

// Output formats.
const (
	formatTree = "tree"
	formatJSON = "json"
	formatYAML = "yaml"
)

type settings struct {
	user        string
	password    string
	askPassword bool
	depth       int
	strategy    treeftp.Strategy
	extended    bool
	timeout     time.Duration
	commandRate float64
	bandwidth   int64
	maxRestarts int

	format   string
	color    bool
	logLevel slog.Level
}

// loadSettings collects the merged flag, environment and config values.
func loadSettings(v *viper.Viper) (*settings, error) {
	s := &settings{
		user:        v.GetString("user"),
		password:    v.GetString("password"),
		askPassword: v.GetBool("ask_password"),
		depth:       v.GetInt("depth"),
		strategy:    treeftp.DepthFirst,
		extended:    v.GetBool("extended"),
		timeout:     v.GetDuration("timeout"),
		commandRate: v.GetFloat64("command_rate"),
		bandwidth:   v.GetInt64("bandwidth"),
		maxRestarts: v.GetInt("max_restarts"),
	}
	if v.GetBool("bfs") {
		s.strategy = treeftp.BreadthFirst
	}
	if s.depth < 0 {
		return nil, fmt.Errorf("depth must not be negative: %d", s.depth)
	}

	if err := loadOutput(v, s); err != nil {
		return nil, err
	}
	return s, nil
}

// loadOutput fills the settings shared by every command.
func loadOutput(v *viper.Viper, s *settings) error {
	s.format = v.GetString("format")
	if v.GetBool("json") {
		s.format = formatJSON
	}
	switch s.format {
	case formatTree, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q", s.format)
	}

	s.color = v.GetBool("color")

	if err := s.logLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// options translates the settings into client options.
func (s *settings) options(logger *slog.Logger) []treeftp.Option {
	return []treeftp.Option{
		treeftp.WithLogger(logger),
		treeftp.WithTimeout(s.timeout),
		treeftp.WithExtendedPassive(s.extended),
		treeftp.WithCommandRate(s.commandRate),
		treeftp.WithBandwidthLimit(s.bandwidth),
		treeftp.WithMaxRestarts(s.maxRestarts),
		treeftp.WithProgress(func(p treeftp.Progress) {
			logger.Debug("directory listed",
				"listings", p.Listings,
				"lines", p.Lines,
				"bytes", p.Bytes,
				"restarts", p.Restarts,
			)
		}),
	}
}
