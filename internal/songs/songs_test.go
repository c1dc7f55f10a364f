package songs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bangertree/bangertree/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plastic Bertrand - Ça Plane Pour Moi (Official Video)", "plastic bertrand ca plane pour moi"},
		{"NENA | 99 Luftballons [1983]", "nena 99 luftballons"},
		{"  Sigur Rós — Hoppípolla  ", "sigur ros hoppipolla"},
		{"", ""},
		{"(live)", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestCatalogMatch(t *testing.T) {
	c := DefaultCatalog()

	label, ok := c.Match("Adriano Celentano - Prisencolinensinainciusol (1972)")
	require.True(t, ok)
	assert.Equal(t, "Adriano Celentano - Prisencolinensinainciusol", label)

	label, ok = c.Match("99 Red Balloons - Nena cover")
	require.True(t, ok)
	assert.Equal(t, "Nena - 99 Luftballons", label)

	_, ok = c.Match("Some totally unknown track")
	assert.False(t, ok)

	_, ok = c.Match("")
	assert.False(t, ok)
}

func TestAggregate(t *testing.T) {
	c := DefaultCatalog()
	posts := []model.Post{
		{URI: "at://1", MediaURL: "https://youtu.be/a", MediaTitle: "Du Hast (Official)"},
		{URI: "at://2", MediaURL: "https://youtube.com/watch?v=b", MediaTitle: "Rammstein - Du Hast"},
		{URI: "at://3", MediaURL: "https://youtu.be/c", MediaTitle: "Mystery Song"},
		{URI: "at://4", MediaURL: "https://youtu.be/d", MediaTitle: "Mystery Song"},
		{URI: "at://5", MediaURL: "https://youtu.be/e", MediaTitle: "One-off tune"},
		{URI: "at://6", MediaURL: "", MediaTitle: "No media, skipped"},
		{URI: "at://7", MediaURL: "https://youtu.be/g", MediaTitle: ""},
	}

	matched, unmatched := c.Aggregate(posts)

	require.Len(t, matched, 1)
	assert.Equal(t, "Rammstein - Du Hast", matched[0].Label)
	assert.Equal(t, 2, matched[0].Count)
	assert.Len(t, matched[0].URLs, 2)
	assert.Len(t, matched[0].Titles, 2, "distinct raw titles are kept")

	require.Len(t, unmatched, 2)
	assert.Equal(t, "mystery song", unmatched[0].Label, "highest count first")
	assert.Equal(t, 2, unmatched[0].Count)
	assert.Equal(t, []string{"Mystery Song"}, unmatched[0].Titles, "duplicate titles collapse")
}

func TestBestYouTubeURL(t *testing.T) {
	assert.Equal(t,
		"https://youtube.com/watch?v=b",
		BestYouTubeURL([]string{"https://youtu.be/a", "https://youtube.com/watch?v=b"}),
		"watch links beat short links")
	assert.Equal(t,
		"https://youtu.be/a",
		BestYouTubeURL([]string{"https://example.com/x", "https://youtu.be/a"}))
	assert.Equal(t, "https://example.com/x", BestYouTubeURL([]string{"https://example.com/x"}))
	assert.Equal(t, "", BestYouTubeURL(nil))
}
