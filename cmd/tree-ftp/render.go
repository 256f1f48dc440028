package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gzordrai/tree-ftp/tree"
)

func newRenderCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "render <file.json>",
		Short: "Print a saved JSON tree in another format",
		Long: `render reads a document written by "tree-ftp --json" and prints it
again, as an indented tree by default. Use "-" to read standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &settings{}
			if err := loadOutput(v, s); err != nil {
				return err
			}

			data, err := readDocument(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			root, err := tree.ParseJSON(data)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), root, s)
		},
	}
}

func readDocument(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}
