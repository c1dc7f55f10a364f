package bluesky

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotedURIRecordEmbed(t *testing.T) {
	var r postRecord
	require.NoError(t, json.Unmarshal([]byte(`{
		"text": "look at this",
		"embed": {
			"$type": "app.bsky.embed.record",
			"record": {"uri": "at://did:plc:parent/app.bsky.feed.post/1"}
		}
	}`), &r))

	assert.Equal(t, "at://did:plc:parent/app.bsky.feed.post/1", r.quotedURI())
}

func TestQuotedURIRecordWithMedia(t *testing.T) {
	var r postRecord
	require.NoError(t, json.Unmarshal([]byte(`{
		"text": "quote plus a link",
		"embed": {
			"$type": "app.bsky.embed.recordWithMedia",
			"record": {"record": {"uri": "at://did:plc:parent/app.bsky.feed.post/2"}},
			"media": {
				"$type": "app.bsky.embed.external",
				"external": {"uri": "https://youtu.be/dQw4w9WgXcQ", "title": "A song"}
			}
		}
	}`), &r))

	assert.Equal(t, "at://did:plc:parent/app.bsky.feed.post/2", r.quotedURI())

	url, title, _ := r.mediaInfo()
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", url)
	assert.Equal(t, "A song", title)
}

func TestQuotedURIExternalOnly(t *testing.T) {
	var r postRecord
	require.NoError(t, json.Unmarshal([]byte(`{
		"text": "just a link",
		"embed": {
			"$type": "app.bsky.embed.external",
			"external": {"uri": "https://example.com", "title": "Example", "description": "desc"}
		}
	}`), &r))

	assert.Empty(t, r.quotedURI(), "an external embed is not a quote edge")

	url, title, desc := r.mediaInfo()
	assert.Equal(t, "https://example.com", url)
	assert.Equal(t, "Example", title)
	assert.Equal(t, "desc", desc)
}

func TestQuotedURINoEmbed(t *testing.T) {
	r := postRecord{Text: "plain post"}
	assert.Empty(t, r.quotedURI())

	url, title, desc := r.mediaInfo()
	assert.Empty(t, url)
	assert.Empty(t, title)
	assert.Empty(t, desc)
}

func TestToPost(t *testing.T) {
	var v postView
	require.NoError(t, json.Unmarshal([]byte(`{
		"uri": "at://did:plc:abc/app.bsky.feed.post/3k1",
		"cid": "bafy1",
		"author": {"did": "did:plc:abc", "handle": "alice.bsky.social", "displayName": "Alice"},
		"record": {
			"text": "hello",
			"createdAt": "2024-11-20T10:00:00Z",
			"embed": {
				"$type": "app.bsky.embed.record",
				"record": {"uri": "at://did:plc:p/app.bsky.feed.post/0"}
			}
		},
		"replyCount": 1,
		"repostCount": 2,
		"likeCount": 3,
		"quoteCount": 4,
		"indexedAt": "2024-11-20T10:00:05Z"
	}`), &v))

	firstSeen := time.Date(2024, 11, 21, 0, 0, 0, 0, time.UTC)
	p := v.toPost(firstSeen)

	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/3k1", p.URI)
	assert.Equal(t, "did:plc:abc", p.AuthorDID)
	assert.Equal(t, "Alice", p.AuthorDisplayName)
	assert.Equal(t, "at://did:plc:p/app.bsky.feed.post/0", p.QuotesURI)
	assert.Equal(t, "app.bsky.embed.record", p.EmbedType)
	assert.Equal(t, 4, p.QuoteCount)
	assert.Equal(t, firstSeen, p.FirstSeenAt)
	assert.Equal(t, time.Date(2024, 11, 20, 10, 0, 0, 0, time.UTC), p.CreatedAt)
	assert.False(t, p.IsRoot())
}

func TestParseTimeLenient(t *testing.T) {
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("garbage").IsZero())
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), parseTime("2024-01-02T03:04:05Z"))
}
