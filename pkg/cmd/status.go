package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	rollconf "github.com/inertialabsxyz/movement/pkg/config"
	rpcclient "github.com/inertialabsxyz/movement/pkg/rpc/client"
	"github.com/inertialabsxyz/movement/pkg/telemetry"
)

// StatusCmd queries the REST API of a running node.
func StatusCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:          "status",
		Short:        "Show the health and sync status of a running node",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeConfig, err := ParseConfig(cmd)
			if err != nil {
				return err
			}

			client := rpcclient.NewClient(nodeConfig.RPC.Address,
				rpcclient.WithHTTPClient(telemetry.RPCHTTPClientFromConfig(nodeConfig.Instrumentation)),
			)
			ctx := cmd.Context()

			health, err := client.GetHealth(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("health:     %s\n", health)

			ready, reason, err := client.IsReady(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("ready:      %t (%s)\n", ready, reason)
			if !ready {
				return nil
			}

			sync, err := client.GetSync(ctx)
			if err != nil {
				return fmt.Errorf("failed to get sync status: %w", err)
			}
			cmd.Printf("height:     %d\n", sync.Height)
			cmd.Printf("da height:  %d\n", sync.DAHeight)
			cmd.Printf("state root: %s\n", sync.StateRoot)
			return nil
		},
	}
	rollconf.AddFlags(statusCmd)
	return statusCmd
}
