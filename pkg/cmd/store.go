package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	rollconf "github.com/inertialabsxyz/movement/pkg/config"
	"github.com/inertialabsxyz/movement/pkg/store"
)

// UnsafeCleanDataDir removes all contents of the specified data directory.
// It does not remove the data directory itself, only its contents.
func UnsafeCleanDataDir(dataDir string) error {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			// Data directory does not exist, nothing to clean.
			return nil
		}
		return fmt.Errorf("failed to read data directory: %w", err)
	}
	for _, entry := range entries {
		entryPath := filepath.Join(dataDir, entry.Name())
		if err := os.RemoveAll(entryPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entryPath, err)
		}
	}
	return nil
}

// StoreUnsafeCleanCmd removes the execution state and the sync store of the node.
func StoreUnsafeCleanCmd() *cobra.Command {
	cleanCmd := &cobra.Command{
		Use:   "unsafe-clean",
		Short: "Remove all contents of the data directory (DANGEROUS: cannot be undone)",
		Long: `Removes the execution state and the sync store kept in the node's data directory.
The node resumes from the configured initial DA height on its next start.
This operation is unsafe and cannot be undone. Use with caution!`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeConfig, err := ParseConfig(cmd)
			if err != nil {
				return fmt.Errorf("error parsing config: %w", err)
			}
			dataDir := nodeConfig.DBDir()
			cmd.Println("Data directory:", dataDir)

			if err := UnsafeCleanDataDir(dataDir); err != nil {
				return err
			}
			cmd.Printf("All contents of the data directory at %s have been removed.\n", dataDir)
			return nil
		},
	}
	rollconf.AddFlags(cleanCmd)
	return cleanCmd
}

// DAHeightCmd prints the DA height the node has durably processed.
func DAHeightCmd() *cobra.Command {
	heightCmd := &cobra.Command{
		Use:   "da-height",
		Short: "Print the synced DA height of the node",
		Long: `Opens the sync store of the node in read-only mode and prints the last DA height
whose batch was executed and checkpointed. The node resumes ingestion at the next height.
The node must not be running.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeConfig, err := ParseConfig(cmd)
			if err != nil {
				return err
			}

			height, err := readSyncedHeight(cmd, nodeConfig)
			if err != nil {
				return err
			}
			cmd.Println(height)
			return nil
		},
	}
	rollconf.AddFlags(heightCmd)
	return heightCmd
}

func readSyncedHeight(cmd *cobra.Command, nodeConfig rollconf.Config) (uint64, error) {
	path := nodeConfig.DaDBPath()
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("no sync store at %s: %w", path, err)
	}

	daDB, err := store.OpenReadOnlyDaDB(path)
	if err != nil {
		return 0, err
	}
	defer daDB.Close()

	height, err := daDB.GetSyncedHeight(cmd.Context())
	if errors.Is(err, store.ErrSyncedHeightNotInitialized) {
		return 0, fmt.Errorf("sync store at %s was never initialized", path)
	}
	return height, err
}
