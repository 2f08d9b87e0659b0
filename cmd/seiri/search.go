package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/seiri/internal/search"
)

func init() {
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index for releases",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	searchCmd.Flags().StringP("category", "c", "english", "Category: all, english, raw, non-english")
	searchCmd.Flags().StringP("filter", "f", "none", "Filter: none, no-remakes, trusted")
	searchCmd.Flags().IntP("limit", "l", 20, "Maximum results to show")

	rootCmd.AddCommand(searchCmd)
}

func parseCategory(s string) (search.Category, error) {
	switch s {
	case "all":
		return search.CategoryAll, nil
	case "english":
		return search.CategoryEnglish, nil
	case "raw":
		return search.CategoryRaw, nil
	case "non-english":
		return search.CategoryNonEnglish, nil
	default:
		return 0, fmt.Errorf("unknown category %q", s)
	}
}

func parseFilter(s string) (search.Filter, error) {
	switch s {
	case "none":
		return search.FilterNone, nil
	case "no-remakes":
		return search.FilterNoRemakes, nil
	case "trusted":
		return search.FilterTrusted, nil
	default:
		return 0, fmt.Errorf("unknown filter %q", s)
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	catName, _ := cmd.Flags().GetString("category")
	filterName, _ := cmd.Flags().GetString("filter")
	limit, _ := cmd.Flags().GetInt("limit")

	category, err := parseCategory(catName)
	if err != nil {
		return err
	}
	filter, err := parseFilter(filterName)
	if err != nil {
		return err
	}

	client := search.NewClient("", cliLogger())
	results, err := client.Search(cmd.Context(), strings.Join(args, " "), category, filter)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	if len(results) > limit {
		results = results[:limit]
	}

	fmt.Printf("  %-4s %-60s %-10s %-8s %s\n", "#", "TITLE", "SIZE", "SEEDERS", "FLAGS")
	fmt.Println("  " + strings.Repeat("-", 92))
	for i, r := range results {
		var flags []string
		if r.Trusted {
			flags = append(flags, "trusted")
		}
		if r.Remake {
			flags = append(flags, "remake")
		}
		if r.Batch {
			flags = append(flags, "batch")
		}
		fmt.Printf("  %-4d %-60s %-10s %-8d %s\n",
			i+1, truncate(r.Title, 60), humanize.Bytes(uint64(r.Size)), r.Seeders, strings.Join(flags, ","))
	}
	return nil
}
