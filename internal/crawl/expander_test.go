package crawl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandQuotesBasicScenario(t *testing.T) {
	// Root R has two quoting posts A and B, both leaves.
	gw := newFakeGateway()
	gw.addPost("at://r", 2, "", "at://a", "at://b")
	gw.addPost("at://a", 0, "at://r")
	gw.addPost("at://b", 0, "at://r")

	engine, st := newTestEngine(t, gw)
	ctx := context.Background()

	created, err := engine.ExpandQuotes(ctx, "at://r", -1)
	require.NoError(t, err)
	assert.Equal(t, 3, created, "R itself plus A and B are new")

	for _, uri := range []string{"at://r", "at://a", "at://b"} {
		stored, err := st.GetPost(ctx, uri)
		require.NoError(t, err)
		require.NotNil(t, stored, "%s must be stored", uri)
		assert.True(t, stored.QuotesExpanded, "%s must be fully expanded", uri)
	}
}

func TestExpandQuotesIsIdempotent(t *testing.T) {
	gw := newFakeGateway()
	gw.addPost("at://r", 2, "", "at://a", "at://b")
	gw.addPost("at://a", 0, "at://r")
	gw.addPost("at://b", 0, "at://r")

	engine, _ := newTestEngine(t, gw)
	ctx := context.Background()

	_, err := engine.ExpandQuotes(ctx, "at://r", -1)
	require.NoError(t, err)
	firstQuoteCalls := gw.quoteCalls["at://r"]

	created, err := engine.ExpandQuotes(ctx, "at://r", -1)
	require.NoError(t, err)
	assert.Zero(t, created, "second run with no new remote data creates nothing")
	assert.Equal(t, firstQuoteCalls, gw.quoteCalls["at://r"], "no re-pagination of an expanded post")
}

func TestExpandQuotesIncrementalRecrawl(t *testing.T) {
	gw := newFakeGateway()
	gw.addPost("at://r", 2, "", "at://a", "at://b")
	gw.addPost("at://a", 1, "at://r", "at://d")
	gw.addPost("at://b", 0, "at://r")
	gw.addPost("at://d", 0, "at://a")

	engine, st := newTestEngine(t, gw)
	ctx := context.Background()

	created, err := engine.ExpandQuotes(ctx, "at://r", -1)
	require.NoError(t, err)
	assert.Equal(t, 4, created)
	quoteCallsA := gw.quoteCalls["at://a"]

	// A new quote C appears on R.
	gw.addPost("at://c", 0, "at://r")
	gw.quotes["at://r"] = []string{"at://a", "at://b", "at://c"}
	gw.setQuoteCount("at://r", 3)

	// Re-ingesting the fresh fetch of R reopens it.
	fresh, err := gw.GetPost(ctx, "at://r")
	require.NoError(t, err)
	_, err = engine.SavePost(ctx, fresh, false)
	require.NoError(t, err)
	stored, _ := st.GetPost(ctx, "at://r")
	require.False(t, stored.QuotesExpanded)

	created, err = engine.ExpandQuotes(ctx, "at://r", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, created, "only C is new")

	storedC, _ := st.GetPost(ctx, "at://c")
	require.NotNil(t, storedC)
	assert.Equal(t, quoteCallsA, gw.quoteCalls["at://a"],
		"A stayed expanded and unchanged, so its quote list is not re-fetched")
}

func TestExpandQuotesDepthBound(t *testing.T) {
	gw := newFakeGateway()
	gw.addPost("at://r", 1, "", "at://a")
	gw.addPost("at://a", 1, "at://r", "at://d")
	gw.addPost("at://d", 0, "at://a")

	engine, st := newTestEngine(t, gw)
	ctx := context.Background()

	_, err := engine.ExpandQuotes(ctx, "at://r", 0)
	require.NoError(t, err)

	// A was ingested from R's quote page; the depth bound only stops its
	// own expansion.
	storedA, _ := st.GetPost(ctx, "at://a")
	require.NotNil(t, storedA)
	assert.False(t, storedA.QuotesExpanded)

	storedD, _ := st.GetPost(ctx, "at://d")
	assert.Nil(t, storedD, "beyond the depth bound nothing is fetched")
	assert.Zero(t, gw.quoteCalls["at://a"])
}

func TestExpandQuotesPaginates(t *testing.T) {
	gw := newFakeGateway()
	children := []string{"at://c1", "at://c2", "at://c3", "at://c4", "at://c5"}
	gw.addPost("at://r", len(children), "", children...)
	for _, c := range children {
		gw.addPost(c, 0, "at://r")
	}
	gw.pageSize = 2

	engine, st := newTestEngine(t, gw)
	ctx := context.Background()

	created, err := engine.ExpandQuotes(ctx, "at://r", -1)
	require.NoError(t, err)
	assert.Equal(t, len(children)+1, created, "root plus every child is new")
	assert.Equal(t, 3, gw.quoteCalls["at://r"], "five children at page size two is three pages")

	stored, _ := st.GetPost(ctx, "at://r")
	assert.True(t, stored.QuotesExpanded)
}

func TestExpandQuotesSkipsUnreachableRoot(t *testing.T) {
	gw := newFakeGateway()
	gw.notFound["at://gone"] = true

	engine, _ := newTestEngine(t, gw)

	created, err := engine.ExpandQuotes(context.Background(), "at://gone", -1)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestExpandQuotesRequeuesTransientFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.addPost("at://r", 1, "", "at://a")
	gw.addPost("at://a", 0, "at://r")
	gw.quoteFailures["at://r"] = 1

	engine, st := newTestEngine(t, gw)
	ctx := context.Background()

	created, err := engine.ExpandQuotes(ctx, "at://r", -1)
	require.NoError(t, err, "one transient failure is absorbed by requeueing")
	assert.Equal(t, 2, created)

	stored, _ := st.GetPost(ctx, "at://r")
	assert.True(t, stored.QuotesExpanded)
}

func TestExpandQuotesGivesUpAfterRetryBudget(t *testing.T) {
	gw := newFakeGateway()
	gw.addPost("at://r", 1, "", "at://a")
	gw.addPost("at://a", 0, "at://r")
	gw.quoteFailures["at://r"] = 10

	engine, st := newTestEngine(t, gw)
	ctx := context.Background()

	_, err := engine.ExpandQuotes(ctx, "at://r", -1)
	require.Error(t, err, "exhausting the retry budget ends the run")

	// The store stays valid and resumable: the flag is still false.
	stored, _ := st.GetPost(ctx, "at://r")
	require.NotNil(t, stored)
	assert.False(t, stored.QuotesExpanded)
}

func TestExpandQuotesZeroQuoteLeafMarkedWithoutFetch(t *testing.T) {
	gw := newFakeGateway()
	gw.addPost("at://leaf", 0, "")

	engine, st := newTestEngine(t, gw)
	ctx := context.Background()

	created, err := engine.ExpandQuotes(ctx, "at://leaf", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	stored, _ := st.GetPost(ctx, "at://leaf")
	assert.True(t, stored.QuotesExpanded)
	assert.Zero(t, gw.quoteCalls["at://leaf"], "nothing to fetch for a zero-quote post")
}
