package cmd

import (
	"github.com/spf13/cobra"

	rollconf "github.com/inertialabsxyz/movement/pkg/config"
)

// StartCmd runs the partial node.
func StartCmd() *cobra.Command {
	startCmd := &cobra.Command{
		Use:          "start",
		Aliases:      []string{"node", "run"},
		Short:        "Run the partial node",
		SilenceUsage: true,
		RunE: func(command *cobra.Command, args []string) error {
			nodeConfig, err := ParseConfig(command)
			if err != nil {
				return err
			}

			logger := SetupLogger(nodeConfig.Log)
			logger.Info().
				Str("chain_id", nodeConfig.Execution.ChainID).
				Str("light_node", nodeConfig.DA.LightNode.URL()).
				Bool("settlement", nodeConfig.Settlement.ShouldSettle()).
				Msg("starting partial node")

			return StartNode(logger, command, nodeConfig)
		},
	}

	rollconf.AddFlags(startCmd)
	return startCmd
}
