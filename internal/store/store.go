// Package store persists the quote-tree posts table. The Store interface
// decouples the crawl engine from Postgres so the engine can be tested
// against the in-memory implementation.
package store

import (
	"context"

	"github.com/bangertree/bangertree/internal/model"
)

// Store is the durable keyed posts table with crawl-state flags.
//
// Implementations must make InsertPost an atomic insert-if-absent: two
// concurrent inserts of the same URI must not both report success.
type Store interface {
	// GetPost returns the stored row for uri, or nil if absent.
	GetPost(ctx context.Context, uri string) (*model.Post, error)

	// InsertPost inserts p if no row exists for its URI. It reports whether
	// the row was actually created.
	InsertPost(ctx context.Context, p model.Post) (bool, error)

	// UpdateEngagement overwrites the engagement counters and the
	// quotes_expanded flag for an existing row. Identity, authorship, text,
	// parent edge, and media fields are never rewritten.
	UpdateEngagement(ctx context.Context, uri string, e model.Engagement, quotesExpanded bool) error

	// MarkQuotesExpanded records that the quote set of uri has been fully
	// enumerated.
	MarkQuotesExpanded(ctx context.Context, uri string) error

	// NextUnexpanded returns the post with the highest quote count among
	// rows with quotes_expanded = false and quote_count > 0, or nil when no
	// such row remains.
	NextUnexpanded(ctx context.Context) (*model.Post, error)

	// URIsWithQuotes returns the URIs of every post with quote_count > 0,
	// ordered by quote count descending.
	URIsWithQuotes(ctx context.Context) ([]string, error)

	// AllPosts returns every stored post. Used by the tree exporter.
	AllPosts(ctx context.Context) ([]model.Post, error)

	// MediaPosts returns every post with a non-empty media URL.
	MediaPosts(ctx context.Context) ([]model.Post, error)

	// Stats summarizes the table for reporting.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the underlying resources.
	Close() error
}

// Stats is a read-only summary of the posts table.
type Stats struct {
	TotalPosts     int
	PostsWithMedia int

	// TopQuoted holds the most-quoted posts, highest first.
	TopQuoted []model.Post

	// TopMedia holds the most frequently shared media links, highest first.
	TopMedia []MediaCount
}

// MediaCount aggregates how many posts shared the same media URL.
type MediaCount struct {
	URL   string
	Title string
	Count int
}
