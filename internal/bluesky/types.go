package bluesky

import (
	"time"

	"github.com/bangertree/bangertree/internal/model"
)

// Embed $type values the crawler understands. Anything else is stored as an
// opaque tag with no media summary.
const (
	embedRecord          = "app.bsky.embed.record"
	embedExternal        = "app.bsky.embed.external"
	embedRecordWithMedia = "app.bsky.embed.recordWithMedia"
)

// postView mirrors the app.bsky.feed.defs#postView fields the crawler
// consumes. Everything else in the response is ignored.
type postView struct {
	URI    string `json:"uri"`
	CID    string `json:"cid"`
	Author struct {
		DID         string `json:"did"`
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Record      postRecord `json:"record"`
	ReplyCount  int        `json:"replyCount"`
	RepostCount int        `json:"repostCount"`
	LikeCount   int        `json:"likeCount"`
	QuoteCount  int        `json:"quoteCount"`
	IndexedAt   string     `json:"indexedAt"`
}

type postRecord struct {
	Text      string       `json:"text"`
	CreatedAt string       `json:"createdAt"`
	Embed     *recordEmbed `json:"embed"`
}

// recordEmbed covers the three embed shapes we care about. recordWithMedia
// nests a record ref under "record" and an inner embed under "media".
type recordEmbed struct {
	Type     string          `json:"$type"`
	Record   *embedRecordRef `json:"record"`
	External *externalEmbed  `json:"external"`
	Media    *recordEmbed    `json:"media"`
}

type embedRecordRef struct {
	URI string `json:"uri"`
	// recordWithMedia wraps the ref one level deeper.
	Record *embedRecordRef `json:"record"`
}

type externalEmbed struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// quotedURI extracts the parent edge: the URI of the post this record quotes.
func (r postRecord) quotedURI() string {
	e := r.Embed
	if e == nil {
		return ""
	}
	switch e.Type {
	case embedRecord:
		if e.Record != nil {
			return e.Record.URI
		}
	case embedRecordWithMedia:
		if e.Record != nil && e.Record.Record != nil {
			return e.Record.Record.URI
		}
	}
	return ""
}

// mediaInfo extracts the external link summary, if any, from the record embed.
func (r postRecord) mediaInfo() (url, title, desc string) {
	e := r.Embed
	if e == nil {
		return "", "", ""
	}
	ext := e.External
	if e.Type == embedRecordWithMedia && e.Media != nil && e.Media.Type == embedExternal {
		ext = e.Media.External
	}
	if ext == nil {
		return "", "", ""
	}
	return ext.URI, ext.Title, ext.Description
}

// toPost converts a wire post into the persisted form. Media summary and the
// parent edge are derived here, once, at fetch time; ingestion never
// recomputes them. firstSeen stamps FirstSeenAt for the insert path.
func (v postView) toPost(firstSeen time.Time) model.Post {
	embedType := ""
	if v.Record.Embed != nil {
		embedType = v.Record.Embed.Type
	}
	mediaURL, mediaTitle, mediaDesc := v.Record.mediaInfo()

	return model.Post{
		URI:               v.URI,
		CID:               v.CID,
		AuthorDID:         v.Author.DID,
		AuthorHandle:      v.Author.Handle,
		AuthorDisplayName: v.Author.DisplayName,
		Text:              v.Record.Text,
		CreatedAt:         parseTime(v.Record.CreatedAt),
		IndexedAt:         parseTime(v.IndexedAt),
		LikeCount:         v.LikeCount,
		QuoteCount:        v.QuoteCount,
		RepostCount:       v.RepostCount,
		ReplyCount:        v.ReplyCount,
		QuotesURI:         v.Record.quotedURI(),
		EmbedType:         embedType,
		MediaURL:          mediaURL,
		MediaTitle:        mediaTitle,
		MediaDescription:  mediaDesc,
		FirstSeenAt:       firstSeen,
	}
}

// parseTime is lenient: the network gives us RFC3339, but a missing or
// malformed timestamp is not worth failing a fetch over.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
