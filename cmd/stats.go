package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// newStatsCmd prints database statistics.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print post store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printStats(cmd.Context(), a)
		},
	}
}

func printStats(ctx context.Context, a *app) error {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	fmt.Println("\n=== Database Stats ===")
	fmt.Printf("Total posts: %d\n", stats.TotalPosts)
	fmt.Printf("Posts with media: %d\n", stats.PostsWithMedia)

	fmt.Println("\n=== Top 10 Most Quoted Posts ===")
	for _, p := range stats.TopQuoted {
		text := []rune(p.Text)
		if len(text) > 50 {
			text = text[:50]
		}
		fmt.Printf("  %s: %d quotes, %d likes - %s...\n",
			p.AuthorHandle, p.QuoteCount, p.LikeCount, string(text))
	}

	fmt.Println("\n=== Top 10 Songs (by frequency) ===")
	for _, mc := range stats.TopMedia {
		fmt.Printf("  %dx: %s - %s\n", mc.Count, mc.Title, mc.URL)
	}
	return nil
}
