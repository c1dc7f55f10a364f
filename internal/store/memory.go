package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bangertree/bangertree/internal/model"
)

// Memory is an in-memory Store. It backs the crawl engine tests and is handy
// for dry runs without a database.
type Memory struct {
	mu    sync.Mutex
	posts map[string]model.Post
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{posts: make(map[string]model.Post)}
}

// GetPost returns the stored row for uri, or nil if absent.
func (m *Memory) GetPost(_ context.Context, uri string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[uri]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// InsertPost inserts p if absent, reporting whether a row was created.
func (m *Memory) InsertPost(_ context.Context, p model.Post) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.posts[p.URI]; exists {
		return false, nil
	}
	m.posts[p.URI] = p
	return true, nil
}

// UpdateEngagement overwrites counters and the expansion flag.
func (m *Memory) UpdateEngagement(_ context.Context, uri string, e model.Engagement, quotesExpanded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[uri]
	if !ok {
		return errNoRow(uri)
	}
	p.LikeCount = e.Likes
	p.QuoteCount = e.Quotes
	p.RepostCount = e.Reposts
	p.ReplyCount = e.Replies
	p.QuotesExpanded = quotesExpanded
	m.posts[uri] = p
	return nil
}

// MarkQuotesExpanded flips quotes_expanded to true.
func (m *Memory) MarkQuotesExpanded(_ context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[uri]
	if !ok {
		return errNoRow(uri)
	}
	p.QuotesExpanded = true
	m.posts[uri] = p
	return nil
}

// NextUnexpanded returns the unexpanded post with the highest quote count.
func (m *Memory) NextUnexpanded(_ context.Context) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Post
	for _, p := range m.posts {
		if p.QuotesExpanded || p.QuoteCount <= 0 {
			continue
		}
		if best == nil || p.QuoteCount > best.QuoteCount {
			candidate := p
			best = &candidate
		}
	}
	return best, nil
}

// URIsWithQuotes lists quoted posts' URIs, most quoted first.
func (m *Memory) URIsWithQuotes(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var posts []model.Post
	for _, p := range m.posts {
		if p.QuoteCount > 0 {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].QuoteCount > posts[j].QuoteCount })
	uris := make([]string, len(posts))
	for i, p := range posts {
		uris[i] = p.URI
	}
	return uris, nil
}

// AllPosts dumps every stored post.
func (m *Memory) AllPosts(_ context.Context) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts := make([]model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].URI < posts[j].URI })
	return posts, nil
}

// MediaPosts returns posts carrying a media link.
func (m *Memory) MediaPosts(_ context.Context) ([]model.Post, error) {
	all, _ := m.AllPosts(context.Background())
	var posts []model.Post
	for _, p := range all {
		if p.MediaURL != "" {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// Stats summarizes the table.
func (m *Memory) Stats(_ context.Context) (Stats, error) {
	all, _ := m.AllPosts(context.Background())

	var s Stats
	s.TotalPosts = len(all)
	mediaCounts := make(map[string]*MediaCount)
	for _, p := range all {
		if p.MediaURL == "" {
			continue
		}
		s.PostsWithMedia++
		if !strings.Contains(p.MediaURL, "youtu") {
			continue
		}
		mc, ok := mediaCounts[p.MediaURL]
		if !ok {
			mc = &MediaCount{URL: p.MediaURL, Title: p.MediaTitle}
			mediaCounts[p.MediaURL] = mc
		}
		mc.Count++
	}

	sort.Slice(all, func(i, j int) bool { return all[i].QuoteCount > all[j].QuoteCount })
	if len(all) > 10 {
		all = all[:10]
	}
	s.TopQuoted = all

	for _, mc := range mediaCounts {
		s.TopMedia = append(s.TopMedia, *mc)
	}
	sort.Slice(s.TopMedia, func(i, j int) bool { return s.TopMedia[i].Count > s.TopMedia[j].Count })
	if len(s.TopMedia) > 10 {
		s.TopMedia = s.TopMedia[:10]
	}
	return s, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

type errNoRow string

func (e errNoRow) Error() string { return "no row for " + string(e) }
