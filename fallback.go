package artstyle

import "math/rand/v2"

// Fallback confidences.
const (
	FilenameFallbackConfidence = 0.85
	RandomFallbackConfidence   = 0.72
)

// FilenameFallback classifies by filename alone. ok is false when no label
// scores above zero.
func FilenameFallback(h FilenameHeuristic, filename string, labels []string, counts map[string]int) (res ClassificationResult, ok bool) {
	best, score := argmax(h.ScoreAll(filename, labels))
	if best == "" || score <= 0 {
		return ClassificationResult{}, false
	}
	return singleLabelResult(best, FilenameFallbackConfidence, MethodIDFilename, labels, counts), true
}

// RandomFallback picks a label uniformly at random. intN defaults to
// math/rand/v2.IntN. labels must not be empty.
func RandomFallback(labels []string, counts map[string]int, intN func(int) int) ClassificationResult {
	if intN == nil {
		intN = rand.IntN
	}
	label := labels[intN(len(labels))]
	return singleLabelResult(label, RandomFallbackConfidence, MethodIDRandom, labels, counts)
}

// degrade runs the filename fallback, then the random one.
func degrade(h FilenameHeuristic, filename string, labels []string, counts map[string]int, intN func(int) int) ClassificationResult {
	if res, ok := FilenameFallback(h, filename, labels, counts); ok {
		return res
	}
	return RandomFallback(labels, counts, intN)
}

// DefaultLabels returns the canonical style labels in lexical order.
func DefaultLabels() []string {
	return DefaultManifest().Labels()
}

func singleLabelResult(label string, confidence float64, method string, labels []string, counts map[string]int) ClassificationResult {
	scores := make(map[string]float64, len(labels))
	for _, l := range labels {
		scores[l] = 0
	}
	scores[label] = confidence
	return ClassificationResult{
		PredictedLabel:   label,
		Confidence:       confidence,
		Scores:           scores,
		Method:           method,
		ExtractionMethod: MethodNone,
		CorpusCounts:     labelCounts(labels, counts),
	}
}

// labelCounts copies counts and reports 0 for every label it lacks.
func labelCounts(labels []string, counts map[string]int) map[string]int {
	out := make(map[string]int, len(labels))
	for _, l := range labels {
		out[l] = 0
	}
	for l, n := range counts {
		out[l] = n
	}
	return out
}
