package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bangertree/bangertree/internal/bluesky"
	"github.com/bangertree/bangertree/internal/crawl"
)

// newTraceCmd walks from a post up to the root of its quote chain.
func newTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <post-url-or-at-uri>",
		Short: "Trace a post to the root of its quote chain and save every post on the way",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			uri, err := bluesky.ParsePostURL(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Tracing from: %s\n", uri)
			chain, err := a.engine().TraceToRoot(cmd.Context(), uri)
			if err != nil {
				return fmt.Errorf("trace to root: %w", err)
			}

			fmt.Printf("\nChain length: %d\n", len(chain))
			if root := crawl.Root(chain); root != "" {
				fmt.Printf("Root: %s\n", root)
			} else {
				fmt.Println("Root: none")
			}
			return printStats(cmd.Context(), a)
		},
	}
}

// newCrawlCmd breadth-first crawls all quotes reachable from one post.
func newCrawlCmd() *cobra.Command {
	var maxDepth int
	cmd := &cobra.Command{
		Use:   "crawl <at-uri>",
		Short: "Crawl all quotes reachable from a post, breadth-first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			uri, err := bluesky.ParsePostURL(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Crawling quotes from: %s\n", uri)
			created, err := a.engine().ExpandQuotes(cmd.Context(), uri, maxDepth)
			if err != nil {
				return fmt.Errorf("crawl quotes: %w", err)
			}

			fmt.Printf("\nCrawled %d new posts\n", created)
			return printStats(cmd.Context(), a)
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", -1, "maximum expansion depth (-1 for unlimited)")
	return cmd
}

// newCrawlAllCmd drains every unexpanded post in the store.
func newCrawlAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl-all",
		Short: "Crawl every stored post whose quotes have not been expanded yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			created, err := a.engine().CrawlAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("crawl all: %w", err)
			}

			fmt.Printf("\nCrawled %d new posts\n", created)
			return printStats(cmd.Context(), a)
		},
	}
}

// newUpdateCmd re-checks stored posts for new quotes and crawls what grew.
func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Re-check stored posts for new quotes and crawl only the affected subtrees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println("Checking for new quotes on existing posts...")
			grown, err := a.engine().Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("update: %w", err)
			}

			fmt.Printf("\nFound %d posts with new quotes\n", grown)
			return printStats(cmd.Context(), a)
		},
	}
}
