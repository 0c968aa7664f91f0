package artstyle

import "strings"

// Filename heuristic scores. The scale is deliberately discrete: the filename
// is a weak hint, not a classifier.
const (
	FilenameScoreLabel   = 0.95 // label name appears in the filename
	FilenameScoreKeyword = 0.7  // a label keyword appears in the filename
)

// DefaultKeywords are the weak filename indicators of the canonical styles.
var DefaultKeywords = map[string][]string{
	"warli":     {"tribal", "geometric", "simple", "story"},
	"madhubani": {"intricate", "colorful", "pattern", "folk"},
	"pithora":   {"horse", "ritual", "ceremony", "deity"},
}

// FilenameHeuristic scores a filename against a label by substring match.
type FilenameHeuristic struct {
	Keywords map[string][]string // label -> lowercase keywords; nil = DefaultKeywords
}

// Score returns FilenameScoreLabel, FilenameScoreKeyword or 0.
func (h FilenameHeuristic) Score(filename, label string) float64 {
	if filename == "" || label == "" {
		return 0
	}
	lower := strings.ToLower(filename)
	if strings.Contains(lower, strings.ToLower(label)) {
		return FilenameScoreLabel
	}

	keywords := h.Keywords
	if keywords == nil {
		keywords = DefaultKeywords
	}
	for _, kw := range keywords[label] {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return FilenameScoreKeyword
		}
	}
	return 0
}

// ScoreAll scores filename against every label.
func (h FilenameHeuristic) ScoreAll(filename string, labels []string) map[string]float64 {
	out := make(map[string]float64, len(labels))
	for _, l := range labels {
		out[l] = h.Score(filename, l)
	}
	return out
}
