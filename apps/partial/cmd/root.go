package cmd

import (
	"github.com/spf13/cobra"

	movementconfig "github.com/inertialabsxyz/movement/pkg/config"
)

const (
	// AppName is the name of the application, the name of the command, and the name of the home directory.
	AppName = "partial"
)

func init() {
	movementconfig.AddGlobalFlags(RootCmd, AppName)
}

// RootCmd is the root command of the partial node.
var RootCmd = &cobra.Command{
	Use:   AppName,
	Short: "Partial is a rollup node that follows a DA light node, executes the batches it reads and optionally settles the resulting state.",
}
