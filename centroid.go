package artstyle

import (
	"math"

	"github.com/pkg/errors"
)

// Centroid scoring defaults.
const (
	DefaultTemperature    = 0.05
	DefaultFilenameWeight = 0.3
)

// CentroidScorer turns cosine similarity to each label centroid into a
// probability distribution.
type CentroidScorer struct {
	Temperature float64 // softmax temperature, default DefaultTemperature
}

// Score returns a score for every label of idx. Labels with at least one
// sample share a softmax over cosine logits and sum to 1; labels without
// samples score exactly 0.
func (s CentroidScorer) Score(query Vector, idx *ReferenceIndex) (map[string]float64, error) {
	if idx == nil {
		return nil, errors.Wrap(ErrDatasetUnavailable, "no reference index")
	}
	if len(query) != idx.Dim() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "query %d, index %d", len(query), idx.Dim())
	}
	temp := s.Temperature
	if temp <= 0 {
		temp = DefaultTemperature
	}

	q := query.Normalized()
	centroids := idx.centroidMap()
	scores := make(map[string]float64, len(centroids))
	logits := make(map[string]float64, len(centroids))
	maxLogit := math.Inf(-1)
	for _, l := range idx.labels {
		scores[l] = 0
		if len(idx.samples[l]) == 0 {
			continue
		}
		logit := Dot(q, centroids[l]) / temp
		logits[l] = logit
		maxLogit = math.Max(maxLogit, logit)
	}
	if len(logits) == 0 {
		return scores, nil
	}

	var sum float64
	for l, logit := range logits {
		e := math.Exp(logit - maxLogit)
		scores[l] = e
		sum += e
	}
	for l := range logits {
		scores[l] /= sum
	}
	return scores, nil
}

// Predict returns the highest scoring label and its score, ties broken by the
// lexically lowest label.
func (CentroidScorer) Predict(scores map[string]float64) (string, float64) {
	return argmax(scores)
}

// blendFilename mixes filename scores into p as (1-w)p + wf and renormalizes.
// p is returned unchanged when no filename score is positive.
func blendFilename(p, f map[string]float64, w float64) map[string]float64 {
	hit := false
	for _, v := range f {
		if v > 0 {
			hit = true
			break
		}
	}
	if !hit || w <= 0 {
		return p
	}

	out := make(map[string]float64, len(p))
	var sum float64
	for l, v := range p {
		out[l] = (1-w)*v + w*f[l]
		sum += out[l]
	}
	if sum <= 0 {
		return out
	}
	for l := range out {
		out[l] /= sum
	}
	return out
}
