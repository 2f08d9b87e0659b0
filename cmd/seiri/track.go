package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/seiri/internal/library"
)

func init() {
	trackCmd := &cobra.Command{
		Use:   "track <show>",
		Short: "Track a show for automatic download",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrack,
	}
	trackCmd.Flags().IntP("season", "s", 0, "Only download this season")
	trackCmd.Flags().String("group", "", "Only accept releases from this group")
	trackCmd.Flags().String("quality", "", "Only accept this quality (e.g. 1080p)")
	trackCmd.Flags().Int("from-episode", -1, "Start after this episode (default: highest in library)")

	trackedCmd := &cobra.Command{
		Use:   "tracked",
		Short: "List tracked shows",
		RunE:  runTracked,
	}

	untrackCmd := &cobra.Command{
		Use:   "untrack <show>",
		Short: "Stop tracking a show",
		Args:  cobra.ExactArgs(1),
		RunE:  runUntrack,
	}

	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(trackedCmd)
	rootCmd.AddCommand(untrackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	season, _ := cmd.Flags().GetInt("season")
	group, _ := cmd.Flags().GetString("group")
	quality, _ := cmd.Flags().GetString("quality")
	fromEpisode, _ := cmd.Flags().GetInt("from-episode")

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

	last := fromEpisode
	if last < 0 {
		// start after what the library already has
		for _, ep := range show.Episodes {
			if (season == 0 || ep.Season == season) && ep.Number > last {
				last = ep.Number
			}
		}
		if last < 0 {
			last = 0
		}
	}

	err = store.Track(library.TrackedSeries{
		ShowID:       show.ID,
		Title:        show.Title,
		LastEpisode:  last,
		SeasonFilter: season,
		Group:        group,
		Quality:      quality,
		AddedAt:      time.Now(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Tracking %s from episode %d", show.Title, last+1)
	if season > 0 {
		fmt.Printf(" (season %d)", season)
	}
	fmt.Println()
	return nil
}

func runTracked(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tracked, err := store.ListTracked()
	if err != nil {
		return err
	}
	if len(tracked) == 0 {
		fmt.Println("Nothing tracked.")
		return nil
	}

	fmt.Printf("  %-30s %-10s %-8s %-12s %s\n", "SHOW", "LAST EP", "SEASON", "GROUP", "QUALITY")
	fmt.Println("  " + strings.Repeat("-", 70))
	for _, ts := range tracked {
		seasonStr := "any"
		if ts.SeasonFilter > 0 {
			seasonStr = fmt.Sprintf("%d", ts.SeasonFilter)
		}
		fmt.Printf("  %-30s %-10d %-8s %-12s %s\n",
			truncate(ts.Title, 30), ts.LastEpisode, seasonStr, ts.Group, ts.Quality)
	}
	return nil
}

func runUntrack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Untrack(args[0]); err != nil {
		return err
	}
	fmt.Printf("No longer tracking %s\n", args[0])
	return nil
}
