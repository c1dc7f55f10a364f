// Package export renders the persisted quote forest into nested JSON and
// aggregates shared media by YouTube video id. It reads the store only;
// nothing here mutates crawl state.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/bangertree/bangertree/internal/model"
)

// Node is one post in the exported tree. Children are the posts quoting it.
type Node struct {
	URI       string  `json:"uri"`
	Author    string  `json:"author"`
	Handle    string  `json:"handle"`
	Text      string  `json:"text"`
	MediaURL  string  `json:"media_url,omitempty"`
	Title     string  `json:"media_title,omitempty"`
	YouTubeID string  `json:"youtube_id,omitempty"`
	Likes     int     `json:"likes"`
	Quotes    int     `json:"quotes"`
	Created   string  `json:"created,omitempty"`
	Children  []*Node `json:"children"`
}

// BuildForest links posts into trees along their parent edges. Posts whose
// parent is absent from the input become roots; posts with a parent edge
// pointing outside the input are dropped, matching the original exporter.
func BuildForest(posts []model.Post) []*Node {
	nodes := make(map[string]*Node, len(posts))
	parents := make(map[string]string, len(posts))
	for _, p := range posts {
		author := p.AuthorDisplayName
		if author == "" {
			author = p.AuthorHandle
		}
		created := ""
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		nodes[p.URI] = &Node{
			URI:       p.URI,
			Author:    author,
			Handle:    p.AuthorHandle,
			Text:      truncateRunes(p.Text, 100),
			MediaURL:  p.MediaURL,
			Title:     p.MediaTitle,
			YouTubeID: ExtractVideoID(p.MediaURL),
			Likes:     p.LikeCount,
			Quotes:    p.QuoteCount,
			Created:   created,
			Children:  []*Node{},
		}
		parents[p.URI] = p.QuotesURI
	}

	var roots []*Node
	for uri, node := range nodes {
		parent := parents[uri]
		if parent == "" {
			roots = append(roots, node)
			continue
		}
		if parentNode, ok := nodes[parent]; ok {
			parentNode.Children = append(parentNode.Children, node)
		}
	}

	sortNodes(roots)
	for _, n := range nodes {
		sortNodes(n.Children)
	}
	return roots
}

// WriteForest writes the linked forest as indented JSON.
func WriteForest(w io.Writer, posts []model.Post) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(BuildForest(posts)); err != nil {
		return fmt.Errorf("encode forest: %w", err)
	}
	return nil
}

// VideoStat aggregates every post that shared the same YouTube video.
type VideoStat struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Count      int      `json:"count"`
	TotalLikes int      `json:"total_likes"`
	Posters    []string `json:"posters"`
}

// VideoStats groups posts by extracted video id, most shared first.
func VideoStats(posts []model.Post) []VideoStat {
	byID := make(map[string]*VideoStat)
	var order []string
	for _, p := range posts {
		vid := ExtractVideoID(p.MediaURL)
		if vid == "" {
			continue
		}
		stat, ok := byID[vid]
		if !ok {
			stat = &VideoStat{
				ID:    vid,
				Title: p.MediaTitle,
				URL:   "https://youtube.com/watch?v=" + vid,
			}
			byID[vid] = stat
			order = append(order, vid)
		}
		stat.Count++
		stat.TotalLikes += p.LikeCount
		stat.Posters = append(stat.Posters, p.AuthorHandle)
	}

	stats := make([]VideoStat, 0, len(order))
	for _, id := range order {
		stats = append(stats, *byID[id])
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })
	return stats
}

// WriteVideoStats writes the top video aggregates as indented JSON.
func WriteVideoStats(w io.Writer, posts []model.Post, limit int) error {
	stats := VideoStats(posts)
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return fmt.Errorf("encode video stats: %w", err)
	}
	return nil
}

// ExtractVideoID pulls the YouTube video id out of watch and short-link
// URLs. Anything else returns empty.
func ExtractVideoID(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		return u.Query().Get("v")
	case host == "youtu.be":
		return strings.TrimPrefix(strings.SplitN(u.Path, "?", 2)[0], "/")
	}
	return ""
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Quotes != nodes[j].Quotes {
			return nodes[i].Quotes > nodes[j].Quotes
		}
		return nodes[i].URI < nodes[j].URI
	})
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
