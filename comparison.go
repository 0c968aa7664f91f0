package artstyle

import (
	"context"
	"image"
	"log/slog"
	"math"
)

// Dataset comparison calibration.
const (
	comparisonImageWeight    = 0.7
	comparisonFilenameWeight = 0.3
	comparisonMinScore       = 0.5  // below this the largest label wins
	comparisonLowConfidence  = 0.75 // confidence reported for that case
	comparisonBoost          = 0.15
	comparisonMaxConfidence  = 0.98
)

// IndexProvider supplies the reference index, building it on first use.
type IndexProvider interface {
	Index(ctx context.Context) (*ReferenceIndex, error)
}

// StaticIndex provides a prebuilt index. A nil index reports
// ErrDatasetUnavailable.
type StaticIndex struct{ Idx *ReferenceIndex }

// Index returns the wrapped index.
func (s StaticIndex) Index(context.Context) (*ReferenceIndex, error) {
	if s.Idx == nil {
		return nil, ErrDatasetUnavailable
	}
	return s.Idx, nil
}

// DatasetComparisonClassifier compares a query against every reference sample
// and calibrates the best match into a confidence.
type DatasetComparisonClassifier struct {
	Index     IndexProvider
	Extractor FeatureExtractor
	Filename  FilenameHeuristic

	Labels    []string        // labels for fallbacks when no index is available; default DefaultLabels()
	MaxPixels int             // decode guard, default DefaultMaxPixels
	RandIntN  func(n int) int // random fallback source, default math/rand/v2.IntN
	Logger    *slog.Logger    // default slog.Default()
}

func (c *DatasetComparisonClassifier) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Classify decodes data and classifies it. Only ErrImageDecode is returned;
// missing references or failed extraction degrade to the filename and random
// fallbacks.
func (c *DatasetComparisonClassifier) Classify(ctx context.Context, data []byte, filename string) (ClassificationResult, error) {
	img, err := DecodeImage(data, c.MaxPixels)
	if err != nil {
		return ClassificationResult{}, err
	}
	return c.classifyImage(ctx, img, filename), nil
}

func (c *DatasetComparisonClassifier) classifyImage(ctx context.Context, img image.Image, filename string) ClassificationResult {
	idx, err := c.index(ctx)
	if err != nil {
		c.logger().Warn("artstyle: reference index unavailable, degrading", "filename", filename, "error", err.Error())
		return c.fallback(nil, filename)
	}
	if c.Extractor == nil || c.Extractor.Method() != idx.Method() || c.Extractor.Dim() != idx.Dim() {
		c.logger().Warn("artstyle: extractor does not match index, degrading", "index_method", idx.Method(), "index_dim", idx.Dim())
		return c.fallback(idx, filename)
	}

	vec, err := c.Extractor.Extract(img)
	if err != nil {
		c.logger().Warn("artstyle: feature extraction failed, degrading", "filename", filename, "error", err.Error())
		return c.fallback(idx, filename)
	}
	return c.compare(idx, vec, filename)
}

// ClassifyVector classifies an already extracted query vector.
func (c *DatasetComparisonClassifier) ClassifyVector(ctx context.Context, query Vector, filename string) ClassificationResult {
	idx, err := c.index(ctx)
	if err != nil {
		c.logger().Warn("artstyle: reference index unavailable, degrading", "filename", filename, "error", err.Error())
		return c.fallback(nil, filename)
	}
	if len(query) != idx.Dim() {
		c.logger().Warn("artstyle: query dimension does not match index, degrading", "query", len(query), "index", idx.Dim())
		return c.fallback(idx, filename)
	}
	return c.compare(idx, query, filename)
}

func (c *DatasetComparisonClassifier) index(ctx context.Context) (*ReferenceIndex, error) {
	if c.Index == nil {
		return nil, ErrDatasetUnavailable
	}
	return c.Index.Index(ctx)
}

func (c *DatasetComparisonClassifier) compare(idx *ReferenceIndex, query Vector, filename string) ClassificationResult {
	scores := comparisonScores(idx, query, c.Filename.ScoreAll(filename, idx.labels))

	label, best := argmax(scores)
	var confidence float64
	if best < comparisonMinScore {
		label = idx.LargestLabel()
		confidence = comparisonLowConfidence
	} else {
		confidence = math.Min(comparisonMaxConfidence, best+comparisonBoost)
	}

	return ClassificationResult{
		PredictedLabel:   label,
		Confidence:       confidence,
		Scores:           scores,
		Method:           MethodIDComparison,
		ExtractionMethod: idx.Method(),
		CorpusCounts:     idx.CorpusCounts(),
	}
}

// comparisonScores combines the best per-sample cosine of each label with its
// filename score. Labels without samples keep the bare filename score.
func comparisonScores(idx *ReferenceIndex, query Vector, filenameScores map[string]float64) map[string]float64 {
	scores := make(map[string]float64, len(idx.labels))
	for _, l := range idx.labels {
		samples := idx.samples[l]
		if len(samples) == 0 {
			scores[l] = filenameScores[l]
			continue
		}
		base := 0.0
		for _, s := range samples {
			base = math.Max(base, CosineSimilarity(query, s.Vector))
		}
		scores[l] = comparisonImageWeight*base + comparisonFilenameWeight*filenameScores[l]
	}
	return scores
}

func (c *DatasetComparisonClassifier) fallback(idx *ReferenceIndex, filename string) ClassificationResult {
	labels, counts := c.Labels, map[string]int{}
	if idx != nil {
		labels, counts = idx.Labels(), idx.CorpusCounts()
	}
	if len(labels) == 0 {
		labels = DefaultLabels()
	}
	return degrade(c.Filename, filename, labels, counts, c.RandIntN)
}
