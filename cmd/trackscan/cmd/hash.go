package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/trackscan/internal/hashing"
	"github.com/spf13/cobra"
)

func newHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [files...]",
		Short: "Print BLAKE3 content hashes of files",
		Long: `Print the BLAKE3-256 hash of each file in the format used for image
identifiers by "extract --id-mode hash" and the upload endpoint.

Use - to read from standard input.

Examples:
  trackscan hash label.jpg
  cat label.jpg | trackscan hash -`,
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				var (
					sum string
					err error
				)
				if path == "-" {
					sum, err = hashing.Reader(cmd.InOrStdin())
				} else {
					sum, err = hashing.File(path)
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%s  %s\n", sum, path)
			}
			return nil
		},
	}
}
