// Command tree-ftp prints the directory tree of an FTP server.
//
// Usage:
//
//	tree-ftp <address> [flags]
//	tree-ftp render <file.json> [flags]
//
// Settings are read, in increasing order of precedence, from a config.yaml
// in $HOME/.config/tree-ftp or the working directory, from TREE_FTP_*
// environment variables (a .env file is loaded first), and from flags.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// version is set via ldflags.
var version = "dev"

func main() {
	// A missing .env is fine.
	_ = gotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tree-ftp:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree around its own viper instance.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "tree-ftp <address>",
		Short: "Print the directory tree of an FTP server",
		Long: `tree-ftp logs in to an FTP server, walks its directories with CWD,
LIST and CDUP up to a bounded depth, and prints the result as an
indented tree, a JSON document or a YAML document.

The address is a host with an optional port, e.g. ftp.example.com or
127.0.0.1:2121.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}
			return runCrawl(cmd, s, args[0])
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/tree-ftp/config.yaml)")
	pf.String("format", "tree", "output format: tree, json or yaml")
	pf.BoolP("json", "j", false, "shorthand for --format json")
	pf.Bool("color", false, "highlight directories in tree output")
	pf.String("log-level", "info", "log level: debug, info, warn or error")

	f := root.Flags()
	f.StringP("user", "u", "anonymous", "login user")
	f.StringP("password", "p", "anonymous", "login password")
	f.Bool("ask-password", false, "read the password from the terminal")
	f.IntP("depth", "d", 1, "how many levels below the root listing to expand")
	f.BoolP("bfs", "b", false, "crawl breadth-first instead of depth-first")
	f.BoolP("extended", "e", false, "negotiate data connections with EPSV")
	f.Duration("timeout", 30*time.Second, "dial and I/O timeout")
	f.Float64("command-rate", 0, "maximum commands per second (0 for unlimited)")
	f.Int64("bandwidth", 0, "maximum listing bytes per second (0 for unlimited)")
	f.Int("max-restarts", 10, "how often a crawl may start over after a reconnect")

	bindFlags(v, pf, "format", "json", "color", "log-level")
	bindFlags(v, f, "user", "password", "ask-password", "depth", "bfs", "extended",
		"timeout", "command-rate", "bandwidth", "max-restarts")

	root.AddCommand(newRenderCmd(v))
	return root
}

// bindFlags binds each named flag to the viper key of the same name with
// dashes replaced by underscores, so "log-level" is set by the config key
// log_level and by TREE_FTP_LOG_LEVEL.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		_ = v.BindPFlag(key(name), flags.Lookup(name))
	}
}

func key(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// initConfig reads the config file, if any, and enables TREE_FTP_*
// environment variables.
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tree-ftp"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("TREE_FTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}
