package bluesky

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePostURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "handle form",
			in:   "https://bsky.app/profile/alice.bsky.social/post/3k1abc",
			want: "at://alice.bsky.social/app.bsky.feed.post/3k1abc",
		},
		{
			name: "did form",
			in:   "https://bsky.app/profile/did:plc:abc123/post/3k1abc",
			want: "at://did:plc:abc123/app.bsky.feed.post/3k1abc",
		},
		{
			name: "trailing slash",
			in:   "https://bsky.app/profile/alice.bsky.social/post/3k1abc/",
			want: "at://alice.bsky.social/app.bsky.feed.post/3k1abc",
		},
		{
			name: "at uri passes through",
			in:   "at://did:plc:abc123/app.bsky.feed.post/3k1abc",
			want: "at://did:plc:abc123/app.bsky.feed.post/3k1abc",
		},
		{
			name:    "not a post url",
			in:      "https://bsky.app/profile/alice.bsky.social",
			wantErr: true,
		},
		{
			name:    "wrong host",
			in:      "https://example.com/profile/alice/post/3k1",
			wantErr: true,
		},
		{
			name:    "empty",
			in:      "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePostURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsDIDForm(t *testing.T) {
	assert.True(t, isDIDForm("at://did:plc:abc/app.bsky.feed.post/1"))
	assert.False(t, isDIDForm("at://alice.bsky.social/app.bsky.feed.post/1"))
	assert.False(t, isDIDForm("https://bsky.app/profile/alice/post/1"))
}

func TestSplitATURI(t *testing.T) {
	authority, rest, err := splitATURI("at://alice.bsky.social/app.bsky.feed.post/3k1")
	require.NoError(t, err)
	assert.Equal(t, "alice.bsky.social", authority)
	assert.Equal(t, "app.bsky.feed.post/3k1", rest)

	_, _, err = splitATURI("not-an-at-uri")
	assert.Error(t, err)
}
