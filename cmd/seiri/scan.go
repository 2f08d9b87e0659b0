package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmunix/seiri/internal/scanner"
)

func init() {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan media directories into the library",
		RunE:  runScan,
	}
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := scanner.New(store, cliLogger()).Scan(cmd.Context(), cfg.General.MediaDirs)
	if err != nil {
		return err
	}

	fmt.Printf("Scan complete: %d shows added, %d episodes added, %d updated, %d removed",
		result.ShowsAdded, result.EpisodesAdded, result.EpisodesUpdated, result.EpisodesRemoved)
	if result.Skipped > 0 {
		fmt.Printf(", %d files skipped", result.Skipped)
	}
	fmt.Println()
	return nil
}
