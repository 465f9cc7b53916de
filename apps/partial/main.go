package main

import (
	"fmt"
	"os"

	cmds "github.com/inertialabsxyz/movement/apps/partial/cmd"
	rollcmd "github.com/inertialabsxyz/movement/pkg/cmd"
)

func main() {
	rootCmd := cmds.RootCmd

	rootCmd.AddCommand(
		rollcmd.InitCmd(),
		rollcmd.StartCmd(),
		rollcmd.SubmitTxCmd(),
		rollcmd.StatusCmd(),
		rollcmd.LocalDACmd(),
		rollcmd.DAHeightCmd(),
		rollcmd.StoreUnsafeCleanCmd(),
		rollcmd.VersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		// Print to stderr and exit with error
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
