package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vmunix/seiri/internal/archive"
	"github.com/vmunix/seiri/internal/config"
)

func init() {
	compressCmd := &cobra.Command{
		Use:   "compress <show> <episode>",
		Short: "Compress an episode into the archive",
		Args:  cobra.ExactArgs(2),
		RunE:  runCompress,
	}
	compressCmd.Flags().IntP("season", "s", 0, "Season number")

	restoreCmd := &cobra.Command{
		Use:   "restore <show> <episode>",
		Short: "Restore a compressed episode",
		Args:  cobra.ExactArgs(2),
		RunE:  runRestore,
	}
	restoreCmd.Flags().IntP("season", "s", 0, "Season number")

	ghostCmd := &cobra.Command{
		Use:   "ghost <show> <episode>",
		Short: "Delete an episode's file, keeping its record",
		Args:  cobra.ExactArgs(2),
		RunE:  runGhost,
	}
	ghostCmd.Flags().IntP("season", "s", 0, "Season number")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(ghostCmd)
}

func newArchiveManager(cfg *config.Config) (*archive.Manager, func(), error) {
	store, err := openLibrary(cfg)
	if err != nil {
		return nil, nil, err
	}
	codec := archive.NewCodec(cfg.General.CompressionLevel, cliLogger())
	mgr := archive.NewManager(store, codec, cfg.General.ArchivePath, archive.Mode(cfg.General.ArchiveMode), cliLogger())
	return mgr, func() { store.Close() }, nil
}

func episodeArgs(cmd *cobra.Command, args []string) (showID string, season, number int, err error) {
	season, _ = cmd.Flags().GetInt("season")
	number, err = strconv.Atoi(args[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid episode number %q", args[1])
	}
	return args[0], season, number, nil
}

func runCompress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	showID, season, number, err := episodeArgs(cmd, args)
	if err != nil {
		return err
	}
	mgr, done, err := newArchiveManager(cfg)
	if err != nil {
		return err
	}
	defer done()

	if err := mgr.CompressEpisode(showID, season, number); err != nil {
		return err
	}
	fmt.Printf("Compressed %s episode %d\n", showID, number)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	showID, season, number, err := episodeArgs(cmd, args)
	if err != nil {
		return err
	}
	mgr, done, err := newArchiveManager(cfg)
	if err != nil {
		return err
	}
	defer done()

	if err := mgr.RestoreEpisode(showID, season, number); err != nil {
		return err
	}
	fmt.Printf("Restored %s episode %d\n", showID, number)
	return nil
}

func runGhost(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	showID, season, number, err := episodeArgs(cmd, args)
	if err != nil {
		return err
	}
	mgr, done, err := newArchiveManager(cfg)
	if err != nil {
		return err
	}
	defer done()

	if err := mgr.GhostEpisode(showID, season, number); err != nil {
		return err
	}
	fmt.Printf("Ghosted %s episode %d\n", showID, number)
	return nil
}
