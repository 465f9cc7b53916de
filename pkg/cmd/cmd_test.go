package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"

	rollconf "github.com/inertialabsxyz/movement/pkg/config"
)

// executeSubcommand runs sub under a root command carrying the global flags and returns its output.
func executeSubcommand(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()

	rootCmd := &cobra.Command{Use: "root"}
	rollconf.AddGlobalFlags(rootCmd, "movement-test")
	rootCmd.AddCommand(sub)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{sub.Name()}, args...))

	err := rootCmd.Execute()
	return buf.String(), err
}
