package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vmunix/seiri/internal/archive"
	"github.com/vmunix/seiri/internal/player"
)

func init() {
	playCmd := &cobra.Command{
		Use:   "play <show> [episode]",
		Short: "Play an episode, resuming where you left off",
		Long: `Play an episode with the configured player. With no episode number
the first unwatched episode plays. Playback position is saved on exit
and the episode is marked watched when you finish it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runPlay,
	}
	playCmd.Flags().IntP("season", "s", 0, "Season number")

	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	season, _ := cmd.Flags().GetInt("season")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	show, err := store.GetShow(args[0])
	if err != nil {
		return fmt.Errorf("show %q: %w", args[0], err)
	}

	number := 0
	if len(args) == 2 {
		number, err = strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid episode number %q", args[1])
		}
	} else {
		next := show.NextUnwatched()
		if next == nil {
			return fmt.Errorf("%s: everything is watched", show.Title)
		}
		season, number = next.Season, next.Number
	}

	codec := archive.NewCodec(cfg.General.CompressionLevel, cliLogger())
	p := player.New(store, codec, os.TempDir(), cfg.Player.Command, cfg.Player.Args, cliLogger())

	if season > 0 {
		fmt.Printf("Playing %s S%02dE%02d\n", show.Title, season, number)
	} else {
		fmt.Printf("Playing %s E%02d\n", show.Title, number)
	}
	return p.Play(cmd.Context(), show.ID, season, number)
}
