package crawl

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bangertree/bangertree/internal/model"
)

// Refresh re-checks every stored post that has quotes for quote-count
// growth, most-quoted first, then drains the resulting unexpanded set. It
// returns the number of posts found to have grown.
//
// Growth detection rides entirely on SavePost: a re-fetch whose quote count
// exceeds the stored value is reclassified UpdatedNeedsRecrawl and its
// subtree reopens automatically.
func (e *Engine) Refresh(ctx context.Context) (int, error) {
	uris, err := e.store.URIsWithQuotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list quoted posts: %w", err)
	}
	e.logger.Info("checking for new quotes", zap.Int("posts", len(uris)))

	grown := 0
	for _, uri := range uris {
		if err := ctx.Err(); err != nil {
			return grown, fmt.Errorf("refresh interrupted: %w", err)
		}

		post, err := e.gateway.GetPost(ctx, uri)
		if errors.Is(err, model.ErrNotFound) {
			e.logger.Info("post no longer reachable", zap.String("uri", uri))
			continue
		}
		if err != nil {
			// One stale counter is not worth ending the scan over.
			e.logger.Warn("refresh fetch failed", zap.String("uri", uri), zap.Error(err))
			continue
		}

		outcome, err := e.SavePost(ctx, post, false)
		if err != nil {
			return grown, fmt.Errorf("refresh save %s: %w", uri, err)
		}
		if outcome == UpdatedNeedsRecrawl {
			grown++
		}
	}

	e.logger.Info("refresh scan complete", zap.Int("grown", grown))

	if grown > 0 {
		if _, err := e.CrawlAll(ctx); err != nil {
			return grown, err
		}
	}
	return grown, nil
}

// CrawlAll repeatedly expands the highest-quote-count unexpanded post until
// none remains, returning the total number of newly created posts. This is
// the catch-up driver: it terminates because each expansion either sets
// quotes_expanded permanently or discovers zero-quote leaves.
func (e *Engine) CrawlAll(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("crawl-all interrupted: %w", err)
		}

		next, err := e.store.NextUnexpanded(ctx)
		if err != nil {
			return total, fmt.Errorf("pick next unexpanded: %w", err)
		}
		if next == nil {
			e.logger.Info("all quotes expanded", zap.Int("new_posts", total))
			return total, nil
		}

		e.logger.Info("crawling unexpanded post",
			zap.String("uri", next.URI),
			zap.Int("quote_count", next.QuoteCount),
		)
		created, err := e.ExpandQuotes(ctx, next.URI, -1)
		total += created
		if err != nil {
			return total, err
		}
	}
}
