// Package crawl implements the quote-tree crawl engine: ingestion with
// re-crawl detection, root tracing, breadth-first quote expansion, and the
// incremental refresher that catches the whole forest up.
package crawl

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bangertree/bangertree/internal/model"
	"github.com/bangertree/bangertree/internal/store"
)

// ErrIntegrity reports store or graph corruption, such as a parent chain
// exceeding the hop bound. It is fatal: the run aborts loudly.
var ErrIntegrity = errors.New("crawl integrity error")

// Gateway is the remote read API the engine consumes. Implementations return
// model.ErrNotFound for identifiers the remote reports missing; any other
// error is treated as transient for the enclosing work item.
type Gateway interface {
	// GetPost fetches the full record for a single AT URI.
	GetPost(ctx context.Context, uri string) (model.Post, error)

	// GetQuotes returns one page of posts quoting uri plus a continuation
	// cursor; an empty cursor signals the end of pagination.
	GetQuotes(ctx context.Context, uri, cursor string) ([]model.Post, string, error)
}

// Publisher receives the URI of every newly created post. It is optional
// and fire-and-forget; publish failures never affect the crawl.
type Publisher interface {
	PublishCreated(ctx context.Context, uri string)
}

// Engine drives the crawl. All store writes and gateway calls happen on the
// caller's goroutine; there is one logical worker.
type Engine struct {
	store     store.Store
	gateway   Gateway
	publisher Publisher
	logger    *zap.Logger

	maxTraceHops int
	runID        string
}

// Option adjusts Engine construction.
type Option func(*Engine)

// WithMaxTraceHops overrides the defensive bound on root tracing.
func WithMaxTraceHops(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTraceHops = n
		}
	}
}

// WithPublisher attaches an optional new-post publisher.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// New builds an Engine. Each engine carries a run id that tags its log lines
// so interleaved runs can be told apart.
func New(st store.Store, gw Gateway, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	e := &Engine{
		store:        st,
		gateway:      gw,
		logger:       logger.With(zap.String("run_id", runID)),
		maxTraceHops: defaultMaxTraceHops,
		runID:        runID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunID returns the identifier tagged on this engine's log lines.
func (e *Engine) RunID() string { return e.runID }
