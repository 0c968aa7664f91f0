package artstyle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilenameHeuristic_Score(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		keywords map[string][]string
		filename string
		label    string
		want     float64
	}{
		{name: "label in name", filename: "my_warli_art.jpg", label: "warli", want: 0.95},
		{name: "label case-insensitive", filename: "MADHUBANI-fish.PNG", label: "madhubani", want: 0.95},
		{name: "keyword", filename: "tribal_dance.jpg", label: "warli", want: 0.7},
		{name: "keyword for other label", filename: "tribal_dance.jpg", label: "pithora", want: 0},
		{name: "pithora keyword", filename: "white horse ritual.jpg", label: "pithora", want: 0.7},
		{name: "no match", filename: "IMG_0042.jpg", label: "madhubani", want: 0},
		{name: "empty filename", filename: "", label: "warli", want: 0},
		{name: "custom keywords", keywords: map[string][]string{"gond": {"dots"}}, filename: "tiger dots.jpg", label: "gond", want: 0.7},
		{name: "custom keywords replace defaults", keywords: map[string][]string{"gond": {"dots"}}, filename: "tribal.jpg", label: "warli", want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := FilenameHeuristic{Keywords: tc.keywords}
			assert.InDelta(t, tc.want, h.Score(tc.filename, tc.label), 1e-12)
		})
	}
}

func TestFilenameHeuristic_ScoreAll(t *testing.T) {
	t.Parallel()

	got := FilenameHeuristic{}.ScoreAll("warli_pattern.jpg", []string{"madhubani", "pithora", "warli"})
	assert.Equal(t, map[string]float64{"madhubani": 0.7, "pithora": 0, "warli": 0.95}, got)
}
