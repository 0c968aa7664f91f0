package artstyle

import "sort"

// Scoring path identifiers reported in ClassificationResult.Method.
const (
	MethodIDComparison = "dataset-comparison-v1"
	MethodIDFilename   = "fallback-filename-v1"
	MethodIDRandom     = "random-fallback-v1"
)

// CentroidMethodID returns the scoring path id of centroid classification for
// vectors produced by m, e.g. "cvhsv-embeddings-knn".
func CentroidMethodID(m Method) string {
	return string(m) + "-embeddings-knn"
}

// ClassificationResult is the outcome of one classification.
type ClassificationResult struct {
	PredictedLabel   string             `json:"predicted_label"`
	Confidence       float64            `json:"confidence"`
	Scores           map[string]float64 `json:"scores"`
	Method           string             `json:"method"`
	ExtractionMethod Method             `json:"extraction_method"`
	CorpusCounts     map[string]int     `json:"corpus_counts"`
}

// Degraded reports whether the result came from a fallback path rather than a
// comparison against reference vectors.
func (r ClassificationResult) Degraded() bool {
	return r.Method == MethodIDFilename || r.Method == MethodIDRandom
}

// Ranked returns the scored labels ordered by descending score, ties in
// lexical order.
func (r ClassificationResult) Ranked() []string {
	out := make([]string, 0, len(r.Scores))
	for l := range r.Scores {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := r.Scores[out[i]], r.Scores[out[j]]
		if si != sj {
			return si > sj
		}
		return out[i] < out[j]
	})
	return out
}

// argmax returns the label with the highest score, ties broken by the
// lexically lowest label. Empty scores yield "".
func argmax(scores map[string]float64) (string, float64) {
	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best, bestScore := "", -1.0
	for _, l := range labels {
		if s := scores[l]; s > bestScore {
			best, bestScore = l, s
		}
	}
	if best == "" {
		return "", 0
	}
	return best, bestScore
}
