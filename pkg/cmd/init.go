package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rollconf "github.com/inertialabsxyz/movement/pkg/config"
)

// InitCmd initializes a new movement.yaml file in the home directory.
func InitCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the partial node config",
		Long:  fmt.Sprintf("This command initializes a new %s file in the config directory of the node home.", rollconf.ConfigName),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, err := cmd.Flags().GetBool(flagForce)
			if err != nil {
				return fmt.Errorf("error reading force flag: %w", err)
			}

			// we use load in order to parse all the flags
			cfg, err := rollconf.Load(cmd)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("error validating config: %w", err)
			}

			if _, err := os.Stat(cfg.ConfigPath()); err == nil && !force {
				return fmt.Errorf("config file already exists at %s, use --%s to overwrite it", cfg.ConfigPath(), flagForce)
			}

			if err := os.MkdirAll(cfg.DBDir(), 0o750); err != nil {
				return fmt.Errorf("error creating db directory: %w", err)
			}

			if err := cfg.SaveAsYaml(); err != nil {
				return fmt.Errorf("error writing %s file: %w", rollconf.ConfigName, err)
			}

			cmd.Printf("Successfully initialized config file at %s\n", cfg.ConfigPath())
			return nil
		},
	}

	rollconf.AddFlags(initCmd)
	initCmd.Flags().Bool(flagForce, false, "overwrite an existing config file")

	return initCmd
}

const flagForce = "force"
