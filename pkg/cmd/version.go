package cmd

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X".
var (
	Version = "dev"
	GitSHA  = "unknown"
)

// VersionCmd prints the version of the binary.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 0, 2, ' ', 0)
			if _, err := fmt.Fprintf(w, "\nversion:\t%s\n", Version); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "git sha:\t%s\n", GitSHA); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "go:\t%s\n", runtime.Version()); err != nil {
				return err
			}
			return w.Flush()
		},
	}
}
