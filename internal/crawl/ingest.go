package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bangertree/bangertree/internal/model"
	"github.com/bangertree/bangertree/internal/telemetry"
)

// Outcome classifies what SavePost did with a fetched record.
type Outcome int

const (
	// Skipped means the record was malformed (missing identifier) and was
	// dropped without touching the store.
	Skipped Outcome = iota

	// Created means a new row was inserted with quotes_expanded = false.
	Created

	// UpdatedNeedsRecrawl means the observed quote count grew past the
	// stored value, so the row's expansion flag was forced back to false.
	UpdatedNeedsRecrawl

	// UpdatedNoChange means counters were refreshed but the expansion flag
	// was left alone.
	UpdatedNoChange
)

// String returns the outcome name used in logs and metrics labels.
func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case UpdatedNeedsRecrawl:
		return "updated_needs_recrawl"
	case UpdatedNoChange:
		return "updated_no_change"
	default:
		return "skipped"
	}
}

// SavePost upserts one fetched record into the store.
//
// This is the crawl's core consistency mechanism: whenever the observed
// quote count exceeds the stored value, the row's quotes_expanded flag is
// forced to false, so the post is re-opened for expansion on its next
// encounter. A forced refresh without count growth updates counters only and
// does not trigger a re-crawl.
//
// Identity, authorship, text, the parent edge, and the media summary of an
// existing row are never rewritten; divergence there is logged as an anomaly.
func (e *Engine) SavePost(ctx context.Context, post model.Post, forced bool) (Outcome, error) {
	if post.URI == "" {
		e.logger.Warn("skipping malformed record with empty uri")
		telemetry.ObserveIngest(Skipped.String())
		return Skipped, nil
	}

	existing, err := e.store.GetPost(ctx, post.URI)
	if err != nil {
		return Skipped, fmt.Errorf("look up %s: %w", post.URI, err)
	}

	if existing == nil {
		post.QuotesExpanded = false
		if post.FirstSeenAt.IsZero() {
			post.FirstSeenAt = time.Now().UTC()
		}
		inserted, err := e.store.InsertPost(ctx, post)
		if err != nil {
			return Skipped, fmt.Errorf("insert %s: %w", post.URI, err)
		}
		if inserted {
			telemetry.ObserveIngest(Created.String())
			telemetry.IncPostsCreated()
			if e.publisher != nil {
				e.publisher.PublishCreated(ctx, post.URI)
			}
			return Created, nil
		}
		// Lost an insert race; fall through to the update path.
		existing, err = e.store.GetPost(ctx, post.URI)
		if err != nil || existing == nil {
			return Skipped, fmt.Errorf("reread %s after insert conflict: %w", post.URI, err)
		}
	}

	e.checkImmutable(existing, &post)

	grew := post.QuoteCount > existing.QuoteCount
	expanded := existing.QuotesExpanded
	if grew {
		expanded = false
	}
	if err := e.store.UpdateEngagement(ctx, post.URI, post.Engagement(), expanded); err != nil {
		return Skipped, fmt.Errorf("update %s: %w", post.URI, err)
	}

	outcome := UpdatedNoChange
	if grew {
		outcome = UpdatedNeedsRecrawl
		e.logger.Info("quote count grew, reopening for expansion",
			zap.String("uri", post.URI),
			zap.Int("old_count", existing.QuoteCount),
			zap.Int("new_count", post.QuoteCount),
			zap.Bool("forced", forced),
		)
	}
	telemetry.ObserveIngest(outcome.String())
	return outcome, nil
}

// checkImmutable logs when a re-fetched record disagrees with the stored
// immutable fields. The store keeps the original values.
func (e *Engine) checkImmutable(existing *model.Post, fresh *model.Post) {
	if existing.QuotesURI != fresh.QuotesURI {
		e.logger.Warn("parent edge diverged from stored value",
			zap.String("uri", fresh.URI),
			zap.String("stored", existing.QuotesURI),
			zap.String("observed", fresh.QuotesURI),
		)
	}
	if existing.AuthorDID != fresh.AuthorDID {
		e.logger.Warn("author diverged from stored value",
			zap.String("uri", fresh.URI),
			zap.String("stored", existing.AuthorDID),
			zap.String("observed", fresh.AuthorDID),
		)
	}
}
