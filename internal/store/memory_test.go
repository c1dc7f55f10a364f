package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bangertree/bangertree/internal/model"
)

func TestMemoryInsertIsIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	created, err := m.InsertPost(ctx, model.Post{URI: "at://r", QuoteCount: 2})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = m.InsertPost(ctx, model.Post{URI: "at://r", QuoteCount: 5})
	require.NoError(t, err)
	assert.False(t, created)

	post, err := m.GetPost(ctx, "at://r")
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, 2, post.QuoteCount, "second insert must not overwrite")
}

func TestMemoryGetPostAbsent(t *testing.T) {
	m := NewMemory()
	post, err := m.GetPost(context.Background(), "at://missing")
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestMemoryUpdateEngagement(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.InsertPost(ctx, model.Post{URI: "at://r", QuoteCount: 1})
	require.NoError(t, err)

	err = m.UpdateEngagement(ctx, "at://r", model.Engagement{Likes: 9, Quotes: 3}, true)
	require.NoError(t, err)

	post, _ := m.GetPost(ctx, "at://r")
	assert.Equal(t, 9, post.LikeCount)
	assert.Equal(t, 3, post.QuoteCount)
	assert.True(t, post.QuotesExpanded)

	assert.Error(t, m.UpdateEngagement(ctx, "at://missing", model.Engagement{}, false))
}

func TestMemoryNextUnexpandedOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, _ = m.InsertPost(ctx, model.Post{URI: "at://cold", QuoteCount: 1})
	_, _ = m.InsertPost(ctx, model.Post{URI: "at://hot", QuoteCount: 40})
	_, _ = m.InsertPost(ctx, model.Post{URI: "at://leaf", QuoteCount: 0})
	_, _ = m.InsertPost(ctx, model.Post{URI: "at://done", QuoteCount: 99, QuotesExpanded: true})

	next, err := m.NextUnexpanded(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "at://hot", next.URI, "highest unexpanded quote count wins")

	require.NoError(t, m.MarkQuotesExpanded(ctx, "at://hot"))
	require.NoError(t, m.MarkQuotesExpanded(ctx, "at://cold"))

	next, err = m.NextUnexpanded(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestMemoryURIsWithQuotes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, _ = m.InsertPost(ctx, model.Post{URI: "at://a", QuoteCount: 3})
	_, _ = m.InsertPost(ctx, model.Post{URI: "at://b", QuoteCount: 7})
	_, _ = m.InsertPost(ctx, model.Post{URI: "at://leaf", QuoteCount: 0})

	uris, err := m.URIsWithQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"at://b", "at://a"}, uris)
}

func TestMemoryStats(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, _ = m.InsertPost(ctx, model.Post{URI: "at://1", QuoteCount: 5, MediaURL: "https://youtu.be/abc", MediaTitle: "A song"})
	_, _ = m.InsertPost(ctx, model.Post{URI: "at://2", QuoteCount: 1, MediaURL: "https://youtu.be/abc", MediaTitle: "A song"})
	_, _ = m.InsertPost(ctx, model.Post{URI: "at://3", QuoteCount: 9, MediaURL: "https://example.com"})
	_, _ = m.InsertPost(ctx, model.Post{URI: "at://4"})

	s, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, s.TotalPosts)
	assert.Equal(t, 3, s.PostsWithMedia)
	require.NotEmpty(t, s.TopQuoted)
	assert.Equal(t, "at://3", s.TopQuoted[0].URI)
	require.Len(t, s.TopMedia, 1, "only youtube links are ranked")
	assert.Equal(t, 2, s.TopMedia[0].Count)
}
