package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bangertree/bangertree/internal/export"
	"github.com/bangertree/bangertree/internal/songs"
)

// newExportCmd renders the stored quote forest and media aggregates to JSON.
func newExportCmd() *cobra.Command {
	var treeOut, songsOut string
	var topSongs int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the quote forest and song stats as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			posts, err := a.store.AllPosts(cmd.Context())
			if err != nil {
				return fmt.Errorf("load posts: %w", err)
			}

			treeFile, err := os.Create(treeOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", treeOut, err)
			}
			defer treeFile.Close() //nolint:errcheck
			if err := export.WriteForest(treeFile, posts); err != nil {
				return err
			}
			fmt.Printf("Exported tree to %s\n", treeOut)

			media, err := a.store.MediaPosts(cmd.Context())
			if err != nil {
				return fmt.Errorf("load media posts: %w", err)
			}

			songsFile, err := os.Create(songsOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", songsOut, err)
			}
			defer songsFile.Close() //nolint:errcheck
			if err := export.WriteVideoStats(songsFile, media, topSongs); err != nil {
				return err
			}
			fmt.Printf("Exported song stats to %s\n", songsOut)
			return nil
		},
	}
	cmd.Flags().StringVar(&treeOut, "tree-out", "banger_tree.json", "output file for the quote forest")
	cmd.Flags().StringVar(&songsOut, "songs-out", "song_stats.json", "output file for the video aggregates")
	cmd.Flags().IntVar(&topSongs, "top", 100, "number of video aggregates to keep")
	return cmd
}

// newSongsCmd aggregates media titles against the song catalog.
func newSongsCmd() *cobra.Command {
	var topMatched, topUnmatched int
	cmd := &cobra.Command{
		Use:   "songs",
		Short: "Aggregate shared media into canonical songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			media, err := a.store.MediaPosts(cmd.Context())
			if err != nil {
				return fmt.Errorf("load media posts: %w", err)
			}

			matched, unmatched := songs.DefaultCatalog().Aggregate(media)

			fmt.Println("TOP SONGS (matched to canonical names)")
			for i, g := range matched {
				if i >= topMatched {
					break
				}
				fmt.Printf("%2d. [%2d] %s\n      %s\n", i+1, g.Count, g.Label, songs.BestYouTubeURL(g.URLs))
			}

			fmt.Println("\nTOP UNMATCHED (may need manual mapping)")
			for i, g := range unmatched {
				if i >= topUnmatched {
					break
				}
				sample := g.Label
				if len(g.Titles) > 0 {
					sample = g.Titles[0]
				}
				fmt.Printf("%2d. [%2d] %.50s\n", i+1, g.Count, sample)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topMatched, "top", 20, "number of matched songs to print")
	cmd.Flags().IntVar(&topUnmatched, "top-unmatched", 15, "number of unmatched groups to print")
	return cmd
}
