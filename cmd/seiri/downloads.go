package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/seiri/internal/torrent"
)

func init() {
	addCmd := &cobra.Command{
		Use:   "add <magnet>",
		Short: "Submit a magnet link to the torrent daemon",
		Args:  cobra.ExactArgs(1),
		RunE:  runAdd,
	}
	addCmd.Flags().String("show", "", "Show this download belongs to")
	addCmd.Flags().IntP("season", "s", 0, "Season number")
	addCmd.Flags().IntP("episode", "e", 0, "Episode number")

	downloadsCmd := &cobra.Command{
		Use:   "downloads",
		Short: "List active downloads",
		RunE:  runDownloads,
	}

	pauseCmd := &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause a download",
		Args:  cobra.ExactArgs(1),
		RunE:  jobAction("pause"),
	}
	resumeCmd := &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused download",
		Args:  cobra.ExactArgs(1),
		RunE:  jobAction("resume"),
	}
	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a download",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemove,
	}
	removeCmd.Flags().Bool("delete-files", false, "Also delete downloaded data")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(downloadsCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(removeCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	showID, _ := cmd.Flags().GetString("show")
	season, _ := cmd.Flags().GetInt("season")
	episode, _ := cmd.Flags().GetInt("episode")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, jobs, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	mgr := torrent.NewManager(newBackend(cfg), jobs, nil, cliLogger())
	job, err := mgr.Add(cmd.Context(), torrent.AddRequest{
		Magnet:  args[0],
		ShowID:  showID,
		Season:  season,
		Episode: episode,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added job %d (%s)\n", job.ID, job.Hash)
	return nil
}

func runDownloads(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, jobs, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	mgr := torrent.NewManager(newBackend(cfg), jobs, nil, cliLogger())
	active, err := mgr.Active(cmd.Context())
	if err != nil {
		return err
	}
	if len(active) == 0 {
		fmt.Println("No active downloads.")
		return nil
	}

	fmt.Printf("  %-4s %-45s %-12s %-9s %-10s %s\n", "ID", "NAME", "STATUS", "PROGRESS", "RATE", "ETA")
	fmt.Println("  " + strings.Repeat("-", 90))
	for _, aj := range active {
		progress := aj.Job.Progress
		rate, eta := "-", "-"
		if aj.Live != nil {
			progress = aj.Live.Progress
			if aj.Live.DownloadRate > 0 {
				rate = humanize.Bytes(uint64(aj.Live.DownloadRate)) + "/s"
			}
			if aj.Live.ETA > 0 {
				eta = aj.Live.ETA.Round(time.Second).String()
			}
		}
		fmt.Printf("  %-4d %-45s %-12s %-9s %-10s %s\n",
			aj.Job.ID, truncate(aj.Job.Name, 45), aj.Job.Status, fmt.Sprintf("%.1f%%", progress*100), rate, eta)
	}
	return nil
}

func jobAction(verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q", args[0])
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, jobs, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		mgr := torrent.NewManager(newBackend(cfg), jobs, nil, cliLogger())
		switch verb {
		case "pause":
			err = mgr.Pause(cmd.Context(), id)
		case "resume":
			err = mgr.Resume(cmd.Context(), id)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Job %d %sd\n", id, verb)
		return nil
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	deleteFiles, _ := cmd.Flags().GetBool("delete-files")

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid job id %q", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, jobs, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	mgr := torrent.NewManager(newBackend(cfg), jobs, nil, cliLogger())
	if err := mgr.Remove(cmd.Context(), id, deleteFiles); err != nil {
		return err
	}
	fmt.Printf("Job %d removed\n", id)
	return nil
}
