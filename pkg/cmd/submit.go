package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	coreda "github.com/inertialabsxyz/movement/core/da"
	rollconf "github.com/inertialabsxyz/movement/pkg/config"
	"github.com/inertialabsxyz/movement/pkg/da"
)

// SubmitTxCmd submits transactions to the light node as a single batch.
func SubmitTxCmd() *cobra.Command {
	submitCmd := &cobra.Command{
		Use:          "submit-tx [tx...]",
		Short:        "Submit transactions to the DA layer as one batch",
		Long:         "Encodes the given transactions into a batch of the configured chain and submits it to the light node.",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeConfig, err := ParseConfig(cmd)
			if err != nil {
				return err
			}
			logger := SetupLogger(nodeConfig.Log)

			client, err := da.NewClientFromConfig(cmd.Context(), nodeConfig.DA.LightNode, nodeConfig.Execution.ChainID, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to light node: %w", err)
			}
			defer client.Close()

			txs := make([][]byte, len(args))
			for i, arg := range args {
				txs[i] = []byte(arg)
			}

			height, err := client.SubmitBatch(cmd.Context(), coreda.Batch{Transactions: txs})
			if err != nil {
				return fmt.Errorf("failed to submit batch: %w", err)
			}

			cmd.Printf("Submitted %d transaction(s) at DA height %d\n", len(txs), height)
			return nil
		},
	}

	rollconf.AddFlags(submitCmd)
	return submitCmd
}
