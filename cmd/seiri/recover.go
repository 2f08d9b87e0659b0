package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmunix/seiri/internal/library"
)

func init() {
	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Move a corrupt library file aside and start fresh",
		Long: `Checks the library file. If it no longer parses, it is moved to a
timestamped backup next to it and an empty library takes its place.
Rescan afterwards to rebuild; watch state in the backup is not merged.`,
		RunE: runRecover,
	}
	rootCmd.AddCommand(recoverCmd)
}

func runRecover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.General.LibraryPath

	store, err := library.Open(path, cliLogger())
	if err == nil {
		store.Close()
		fmt.Println("Library is healthy, nothing to recover.")
		return nil
	}
	if !errors.Is(err, library.ErrCorruptState) {
		return err
	}

	backup, err := library.Recover(path)
	if err != nil {
		return err
	}
	store, err = library.Open(path, cliLogger())
	if err != nil {
		return err
	}
	store.Close()

	fmt.Printf("Corrupt library moved to %s\nStarted fresh; run 'seiri scan' to rebuild.\n", backup)
	return nil
}
