package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joilabs/mnemo/internal/config"
	"github.com/joilabs/mnemo/internal/memory"
)

var (
	flagSearchAreas []string
	flagSearchLimit int
	flagSearchScope string
	flagSearchTags  []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search stored memories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringSliceVar(&flagSearchAreas, "areas", nil,
		"areas to search (default: knowledge, solutions, episodes)")
	searchCmd.Flags().IntVar(&flagSearchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().StringVar(&flagSearchScope, "scope", "", "restrict to a scope")
	searchCmd.Flags().StringSliceVar(&flagSearchTags, "tags", nil, "require all listed tags")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := cmd.Context()
	eng, err := setupEngine(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer eng.Close(context.Background())

	var areas []memory.Area
	for _, a := range flagSearchAreas {
		areas = append(areas, memory.Area(a))
	}

	query := strings.Join(args, " ")
	results, err := eng.searcher.Search(ctx, query, memory.SearchOpts{
		Areas:       areas,
		Limit:       flagSearchLimit,
		Scope:       flagSearchScope,
		RequireTags: flagSearchTags,
	})
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%2d. [%.3f] (%s, conf %.2f) %s\n",
			i+1, r.Score, r.Memory.Area, r.Memory.Confidence, firstLine(r.Memory.Content))
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}
