package crawl_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/bangertree/bangertree/internal/model"
)

// fakeGateway is a scripted remote API. Posts and quote edges are declared
// up front; call counts let tests assert which fetches actually happened.
type fakeGateway struct {
	mu sync.Mutex

	posts    map[string]model.Post
	quotes   map[string][]string
	notFound map[string]bool

	// quoteFailures[uri] injects that many transient failures into
	// GetQuotes before it succeeds.
	quoteFailures map[string]int

	postCalls  map[string]int
	quoteCalls map[string]int

	pageSize int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		posts:         make(map[string]model.Post),
		quotes:        make(map[string][]string),
		notFound:      make(map[string]bool),
		quoteFailures: make(map[string]int),
		postCalls:     make(map[string]int),
		quoteCalls:    make(map[string]int),
		pageSize:      2,
	}
}

// addPost registers a post and its quote children. Children must be added
// separately with their own addPost calls.
func (g *fakeGateway) addPost(uri string, quoteCount int, parent string, children ...string) {
	g.posts[uri] = model.Post{
		URI:          uri,
		QuoteCount:   quoteCount,
		QuotesURI:    parent,
		AuthorHandle: "author." + uri,
	}
	g.quotes[uri] = children
}

func (g *fakeGateway) setQuoteCount(uri string, n int) {
	p := g.posts[uri]
	p.QuoteCount = n
	g.posts[uri] = p
}

func (g *fakeGateway) GetPost(_ context.Context, uri string) (model.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.postCalls[uri]++
	if g.notFound[uri] {
		return model.Post{}, fmt.Errorf("get post %s: %w", uri, model.ErrNotFound)
	}
	p, ok := g.posts[uri]
	if !ok {
		return model.Post{}, fmt.Errorf("get post %s: %w", uri, model.ErrNotFound)
	}
	return p, nil
}

func (g *fakeGateway) GetQuotes(_ context.Context, uri, cursor string) ([]model.Post, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quoteCalls[uri]++

	if g.quoteFailures[uri] > 0 {
		g.quoteFailures[uri]--
		return nil, "", fmt.Errorf("remote hiccup for %s", uri)
	}
	if g.notFound[uri] {
		return nil, "", fmt.Errorf("get quotes %s: %w", uri, model.ErrNotFound)
	}

	children := g.quotes[uri]
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + g.pageSize
	if end > len(children) {
		end = len(children)
	}

	page := make([]model.Post, 0, end-start)
	for _, child := range children[start:end] {
		page = append(page, g.posts[child])
	}

	next := ""
	if end < len(children) {
		next = strconv.Itoa(end)
	}
	return page, next, nil
}

// fakePublisher records which URIs were announced as created.
type fakePublisher struct {
	mu   sync.Mutex
	uris []string
}

func (p *fakePublisher) PublishCreated(_ context.Context, uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uris = append(p.uris, uri)
}
