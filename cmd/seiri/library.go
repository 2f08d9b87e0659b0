package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/seiri/internal/library"
)

func init() {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "List shows in the library",
		RunE:  runLibrary,
	}

	episodesCmd := &cobra.Command{
		Use:   "episodes <show>",
		Short: "List a show's episodes",
		Args:  cobra.ExactArgs(1),
		RunE:  runEpisodes,
	}

	rootCmd.AddCommand(libraryCmd)
	rootCmd.AddCommand(episodesCmd)
}

func runLibrary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	shows, err := store.ListShows()
	if err != nil {
		return err
	}
	if len(shows) == 0 {
		fmt.Println("Library is empty. Run 'seiri scan' first.")
		return nil
	}

	fmt.Printf("  %-30s %-10s %-10s %s\n", "SHOW", "EPISODES", "WATCHED", "SIZE")
	fmt.Println("  " + strings.Repeat("-", 64))
	for _, show := range shows {
		watched := 0
		var size int64
		for _, ep := range show.Episodes {
			if ep.Watched {
				watched++
			}
			size += ep.Size
		}
		total := fmt.Sprintf("%d", len(show.Episodes))
		if show.EpisodeCount > 0 {
			total = fmt.Sprintf("%d/%d", len(show.Episodes), show.EpisodeCount)
		}
		fmt.Printf("  %-30s %-10s %-10d %s\n",
			truncate(show.Title, 30), total, watched, humanize.Bytes(uint64(size)))
	}
	return nil
}

func runEpisodes(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("%s (%d episodes)\n\n", show.Title, len(show.Episodes))
	for _, ep := range show.Episodes {
		marker := " "
		if ep.Watched {
			marker = "*"
		}
		status := ""
		switch ep.Status {
		case library.ArchivalGhosted:
			status = " [ghosted]"
		case library.ArchivalCompressed:
			status = " [compressed]"
		}
		resume := ""
		if ep.Position > 0 && !ep.Watched {
			resume = fmt.Sprintf(" (resume %s)", formatSeconds(ep.Position))
		}
		if ep.Season > 0 {
			fmt.Printf("  %s S%02dE%02d  %s%s%s\n", marker, ep.Season, ep.Number, humanize.Bytes(uint64(ep.Size)), status, resume)
		} else {
			fmt.Printf("  %s E%02d  %s%s%s\n", marker, ep.Number, humanize.Bytes(uint64(ep.Size)), status, resume)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatSeconds(s float64) string {
	total := int(s)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
