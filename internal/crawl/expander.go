package crawl

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bangertree/bangertree/internal/model"
	"github.com/bangertree/bangertree/internal/telemetry"
)

// maxItemRetries caps how many times a transiently failing queue item is
// requeued before the run exits non-fatally. The item's expansion flag stays
// false, so a later run picks it back up.
const maxItemRetries = 3

// queueItem is one unit of BFS work.
type queueItem struct {
	uri     string
	depth   int
	retries int
}

// ExpandQuotes breadth-first enumerates every post quoting rootURI,
// transitively, and returns the number of newly created posts.
//
// maxDepth < 0 means unlimited. A depth bound discards deeper queue items
// without expanding them, but never suppresses ingestion of posts already
// fetched on a quote page.
//
// Re-running the expander over an already-expanded subtree is a no-op:
// items whose quotes_expanded flag is true are discarded on dequeue. The
// flag is only set after a post's pagination fully completes, so an
// interrupted run leaves the store resumable.
func (e *Engine) ExpandQuotes(ctx context.Context, rootURI string, maxDepth int) (int, error) {
	queue := []queueItem{{uri: rootURI, depth: 0}}
	created := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return created, fmt.Errorf("expansion interrupted: %w", err)
		}

		item := queue[0]
		queue = queue[1:]
		telemetry.SetQueueDepth(len(queue))

		if maxDepth >= 0 && item.depth > maxDepth {
			continue
		}

		state, fresh, err := e.resolveState(ctx, item.uri)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				e.logger.Info("skipping unreachable post", zap.String("uri", item.uri))
				continue
			}
			queue, err = e.requeue(queue, item, err)
			if err != nil {
				return created, err
			}
			continue
		}
		if fresh {
			created++
		}

		if state.QuotesExpanded {
			continue
		}
		if state.QuoteCount == 0 {
			if err := e.store.MarkQuotesExpanded(ctx, item.uri); err != nil {
				return created, fmt.Errorf("mark leaf expanded: %w", err)
			}
			continue
		}

		e.logger.Info("expanding quotes",
			zap.String("uri", item.uri),
			zap.Int("quote_count", state.QuoteCount),
			zap.Int("depth", item.depth),
		)

		newPosts, children, err := e.paginateQuotes(ctx, item.uri, item.depth)
		created += newPosts
		if err != nil {
			if errors.Is(err, errStoreWrite) {
				return created, err
			}
			queue, err = e.requeue(queue, item, err)
			if err != nil {
				return created, err
			}
			continue
		}
		queue = append(queue, children...)

		// Only after the page loop fully completes. An interrupted
		// expansion must leave the flag false.
		if err := e.store.MarkQuotesExpanded(ctx, item.uri); err != nil {
			return created, fmt.Errorf("mark expanded: %w", err)
		}
		telemetry.IncExpansions()
	}

	telemetry.SetQueueDepth(0)
	return created, nil
}

// errStoreWrite distinguishes local persistence failures, which abort the
// run, from remote fetch failures, which requeue the item.
var errStoreWrite = errors.New("store write failed")

// resolveState returns the stored row for uri, fetching and ingesting the
// post first if the store has no row yet. The bool reports whether a new row
// was created by that ingestion.
func (e *Engine) resolveState(ctx context.Context, uri string) (*model.Post, bool, error) {
	state, err := e.store.GetPost(ctx, uri)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", errStoreWrite, err)
	}
	if state != nil {
		return state, false, nil
	}

	post, err := e.gateway.GetPost(ctx, uri)
	if err != nil {
		return nil, false, err
	}
	outcome, err := e.SavePost(ctx, post, false)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", errStoreWrite, err)
	}

	state, err = e.store.GetPost(ctx, uri)
	if err != nil || state == nil {
		return nil, false, fmt.Errorf("%w: reread %s: %w", errStoreWrite, uri, err)
	}
	return state, outcome == Created, nil
}

// paginateQuotes walks every quote page of uri, ingesting each returned post
// and collecting children worth expanding. A NotFound mid-pagination means
// the quote listing is gone; the pages seen so far stand.
func (e *Engine) paginateQuotes(ctx context.Context, uri string, depth int) (created int, children []queueItem, err error) {
	cursor := ""
	for {
		posts, next, err := e.gateway.GetQuotes(ctx, uri, cursor)
		if errors.Is(err, model.ErrNotFound) {
			e.logger.Info("quote listing unavailable", zap.String("uri", uri))
			return created, children, nil
		}
		if err != nil {
			return created, children, err
		}

		for _, post := range posts {
			outcome, err := e.SavePost(ctx, post, false)
			if err != nil {
				return created, children, fmt.Errorf("%w: %w", errStoreWrite, err)
			}
			if outcome == Created {
				created++
			}
			if outcome != Skipped {
				children = append(children, queueItem{uri: post.URI, depth: depth + 1})
			}
		}

		if next == "" || len(posts) == 0 {
			return created, children, nil
		}
		cursor = next
	}
}

// requeue pushes a transiently failed item to the back of the queue, or ends
// the run once its retry budget is spent. Never silently dropped: an
// abandoned item would leave quotes_expanded false but incomplete, which is
// safe, so exiting here is non-fatal for the store.
func (e *Engine) requeue(queue []queueItem, item queueItem, cause error) ([]queueItem, error) {
	item.retries++
	if item.retries > maxItemRetries {
		return queue, fmt.Errorf("giving up on %s after %d attempts: %w", item.uri, item.retries, cause)
	}
	e.logger.Warn("requeueing item after transient failure",
		zap.String("uri", item.uri),
		zap.Int("retries", item.retries),
		zap.Error(cause),
	)
	return append(queue, item), nil
}
