package crawl

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bangertree/bangertree/internal/model"
)

// defaultMaxTraceHops bounds the parent-chain walk. The quote relation is
// acyclic by construction of the embed model, so hitting this bound means
// the store is corrupt.
const defaultMaxTraceHops = 10000

// TraceToRoot walks the quotes_of chain from startURI upward until a post
// with no parent edge is reached, ingesting every post fetched along the
// way. It returns the chain in walk order, root last.
//
// Already-stored posts are read from the store instead of refetched: parent
// edges are immutable, so the store is authoritative for them. A NotFound
// ends the chain early and the last resolved post acts as the effective root
// for this run.
func (e *Engine) TraceToRoot(ctx context.Context, startURI string) ([]string, error) {
	var chain []string
	uri := startURI

	for hops := 0; uri != ""; hops++ {
		if hops >= e.maxTraceHops {
			return nil, fmt.Errorf("%w: parent chain exceeded %d hops from %s",
				ErrIntegrity, e.maxTraceHops, startURI)
		}

		existing, err := e.store.GetPost(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("trace lookup %s: %w", uri, err)
		}
		if existing != nil {
			e.logger.Debug("already have post", zap.String("uri", uri))
			chain = append(chain, uri)
			uri = existing.QuotesURI
			continue
		}

		e.logger.Info("fetching post", zap.String("uri", uri))
		post, err := e.gateway.GetPost(ctx, uri)
		if errors.Is(err, model.ErrNotFound) {
			e.logger.Info("post unreachable, treating previous post as root",
				zap.String("uri", uri))
			break
		}
		if err != nil {
			return chain, fmt.Errorf("trace fetch %s: %w", uri, err)
		}

		if _, err := e.SavePost(ctx, post, false); err != nil {
			return chain, fmt.Errorf("trace save %s: %w", uri, err)
		}
		e.logger.Info("traced post",
			zap.String("author", post.AuthorHandle),
			zap.Int("quotes", post.QuoteCount),
			zap.Int("likes", post.LikeCount),
		)

		chain = append(chain, uri)
		uri = post.QuotesURI
	}

	return chain, nil
}

// Root returns the last element of a trace chain, or empty for an empty
// chain (the start could not be fetched at all).
func Root(chain []string) string {
	if len(chain) == 0 {
		return ""
	}
	return chain[len(chain)-1]
}
