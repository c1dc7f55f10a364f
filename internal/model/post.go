// Package model defines the persisted entities shared between the Bluesky
// gateway, the post store, and the crawl engine.
package model

import (
	"errors"
	"time"
)

// ErrNotFound reports that the remote service has no post for an identifier.
// It is a permanent, per-identifier outcome: callers skip the identifier and
// continue the surrounding traversal instead of aborting.
var ErrNotFound = errors.New("post not found")

// Post is one row of the posts table. The quote graph is a forest: QuotesURI
// is the single parent edge, and a post with an empty QuotesURI is a root.
//
// Identity, authorship, text, the parent edge, and the media summary are
// immutable once a row exists. Engagement counters and QuotesExpanded are the
// only fields ingestion rewrites.
type Post struct {
	URI string
	CID string

	AuthorDID         string
	AuthorHandle      string
	AuthorDisplayName string

	Text      string
	CreatedAt time.Time
	IndexedAt time.Time

	LikeCount   int
	QuoteCount  int
	RepostCount int
	ReplyCount  int

	// QuotesURI is the AT URI of the post this one quotes, empty for roots.
	QuotesURI string

	EmbedType        string
	MediaURL         string
	MediaTitle       string
	MediaDescription string

	FirstSeenAt time.Time

	// QuotesExpanded records whether every post quoting this one, as of the
	// last completed expansion, is present in the store. Ingestion resets it
	// to false whenever the observed quote count grows past the stored value.
	QuotesExpanded bool
}

// IsRoot reports whether the post quotes nothing.
func (p Post) IsRoot() bool {
	return p.QuotesURI == ""
}

// Engagement returns the four counters as a comparable snapshot.
func (p Post) Engagement() Engagement {
	return Engagement{
		Likes:   p.LikeCount,
		Quotes:  p.QuoteCount,
		Reposts: p.RepostCount,
		Replies: p.ReplyCount,
	}
}

// Engagement is a snapshot of a post's counters at fetch time. The remote
// values are monotonically non-decreasing, but we only observe them when we
// happen to fetch the post.
type Engagement struct {
	Likes   int
	Quotes  int
	Reposts int
	Replies int
}
