// Package songs matches shared media titles against a catalog of canonical
// song names. Matching is a pure mapping from normalized title text to
// labels; there is no state and no concurrency.
package songs

import (
	"regexp"
	"sort"
	"strings"

	"github.com/bangertree/bangertree/internal/model"
)

// Catalog maps a canonical song label to the lowercase substrings that
// identify it in a normalized title.
type Catalog map[string][]string

// DefaultCatalog covers the songs that are hard to group automatically
// because they appear under many different uploads and spellings.
func DefaultCatalog() Catalog {
	return Catalog{
		"Adriano Celentano - Prisencolinensinainciusol": {"prisencolinensinainciusol"},
		"Plastic Bertrand - Ça Plane Pour Moi":          {"plane pour moi", "ca plane"},
		"Nena - 99 Luftballons":                         {"99 luftballons", "99 red balloons"},
		"The HU - Wolf Totem":                           {"wolf totem"},
		"The HU - Yuve Yuve Yu":                         {"yuve yuve yu"},
		"O-Zone - Dragostea Din Tei":                    {"dragostea din tei", "numa numa"},
		"Rammstein - Du Hast":                           {"du hast"},
		"Rammstein - Sonne":                             {"rammstein sonne", "rammstein - sonne"},
		"Falco - Der Kommissar":                         {"der kommissar"},
		"Stromae - Papaoutai":                           {"papaoutai"},
		"Pizzicato Five - Twiggy Twiggy":                {"twiggy twiggy"},
		"La Bamba":                                      {"la bamba"},
		"Los Fabulosos Cadillacs - Matador":             {"fabulosos cadillacs", "cadillacs matador"},
		"Sigur Rós - Hoppípolla":                        {"hoppipolla", "hoppípolla"},
		"Bomba Estéreo - Soy Yo":                        {"bomba estereo soy yo", "bomba estéreo soy yo"},
		"Daddy Yankee - Gasolina":                       {"gasolina"},
	}
}

var (
	parenthetical = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	punctuation   = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespace    = regexp.MustCompile(`\s+`)
	accents       = strings.NewReplacer("ç", "c", "é", "e", "ó", "o", "í", "i")
)

// Normalize lowercases a title, folds common accents, and strips
// parenthesized qualifiers and punctuation, so catalog patterns match
// across uploads.
func Normalize(title string) string {
	t := strings.ToLower(title)
	t = accents.Replace(t)
	t = parenthetical.ReplaceAllString(t, "")
	t = punctuation.ReplaceAllString(t, " ")
	t = whitespace.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Match returns the canonical label for a title, or false if no catalog
// pattern matches.
func (c Catalog) Match(title string) (string, bool) {
	norm := Normalize(title)
	if norm == "" {
		return "", false
	}
	for canonical, patterns := range c {
		for _, pattern := range patterns {
			if strings.Contains(norm, pattern) {
				return canonical, true
			}
		}
	}
	return "", false
}

// Group is one aggregated song: either a catalog match or a cluster of
// unmatched posts sharing the same normalized title.
type Group struct {
	Label  string
	Count  int
	URLs   []string
	Titles []string
}

// Aggregate groups media posts by canonical song, and separately clusters
// titles no pattern matched (candidates for new catalog entries). Both
// lists are sorted by descending count.
func (c Catalog) Aggregate(posts []model.Post) (matched, unmatched []Group) {
	matchedBy := make(map[string]*Group)
	unmatchedBy := make(map[string]*Group)

	for _, p := range posts {
		if p.MediaURL == "" || p.MediaTitle == "" {
			continue
		}
		var g *Group
		if canonical, ok := c.Match(p.MediaTitle); ok {
			g = groupFor(matchedBy, canonical)
		} else {
			g = groupFor(unmatchedBy, Normalize(p.MediaTitle))
		}
		g.Count++
		g.URLs = append(g.URLs, p.MediaURL)
		if !contains(g.Titles, p.MediaTitle) {
			g.Titles = append(g.Titles, p.MediaTitle)
		}
	}

	return sortGroups(matchedBy), sortGroups(unmatchedBy)
}

// BestYouTubeURL picks the most canonical YouTube link out of a group's
// URLs, preferring youtube.com watch links over youtu.be short links.
func BestYouTubeURL(urls []string) string {
	for _, u := range urls {
		if strings.Contains(u, "youtube.com/watch") {
			return u
		}
	}
	for _, u := range urls {
		if strings.Contains(u, "youtu") {
			return u
		}
	}
	if len(urls) > 0 {
		return urls[0]
	}
	return ""
}

func groupFor(groups map[string]*Group, label string) *Group {
	g, ok := groups[label]
	if !ok {
		g = &Group{Label: label}
		groups[label] = g
	}
	return g
}

func sortGroups(groups map[string]*Group) []Group {
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
