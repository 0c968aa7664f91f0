package artstyle

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ReferenceSample is one labeled reference vector.
type ReferenceSample struct {
	Label  string
	Vector Vector
	Source string // corpus-relative image path
}

// ReferenceIndex holds the reference vectors of every label. It is immutable
// once constructed and safe to share between goroutines.
type ReferenceIndex struct {
	method  Method
	dim     int
	builtAt time.Time
	root    string

	labels       []string
	samples      map[string][]ReferenceSample
	corpusCounts map[string]int

	centroidsOnce sync.Once
	centroids     map[string]Vector
}

// NewReferenceIndex assembles an index from samples. corpusCounts records how
// many image files each label folder held; labels that appear only there are
// kept with zero samples. Every vector must have length dim.
func NewReferenceIndex(method Method, dim int, samples []ReferenceSample, corpusCounts map[string]int) (*ReferenceIndex, error) {
	idx := &ReferenceIndex{
		method:       method,
		dim:          dim,
		builtAt:      time.Now().UTC(),
		samples:      make(map[string][]ReferenceSample),
		corpusCounts: make(map[string]int),
	}

	for label, n := range corpusCounts {
		idx.corpusCounts[label] = n
		idx.samples[label] = nil
	}
	for i, s := range samples {
		if len(s.Vector) != dim {
			return nil, errors.Wrapf(ErrDimensionMismatch, "sample %d (%s): got %d, want %d", i, s.Source, len(s.Vector), dim)
		}
		idx.samples[s.Label] = append(idx.samples[s.Label], s)
		if _, ok := corpusCounts[s.Label]; !ok {
			idx.corpusCounts[s.Label]++
		}
	}

	for label := range idx.samples {
		idx.labels = append(idx.labels, label)
	}
	sort.Strings(idx.labels)
	return idx, nil
}

// Method is the extraction method every sample vector came from.
func (idx *ReferenceIndex) Method() Method { return idx.method }

// Dim is the length of every sample vector.
func (idx *ReferenceIndex) Dim() int { return idx.dim }

// BuiltAt is when the index was built, not when it was last loaded.
func (idx *ReferenceIndex) BuiltAt() time.Time { return idx.builtAt }

// Root is the corpus directory the index was built from, if known.
func (idx *ReferenceIndex) Root() string { return idx.root }

// Labels returns every known label in lexical order.
func (idx *ReferenceIndex) Labels() []string {
	return append([]string(nil), idx.labels...)
}

// Samples returns the reference samples of label in build order.
// The returned slice must not be modified.
func (idx *ReferenceIndex) Samples(label string) []ReferenceSample {
	return idx.samples[label]
}

// Len returns the total number of reference vectors.
func (idx *ReferenceIndex) Len() int {
	n := 0
	for _, s := range idx.samples {
		n += len(s)
	}
	return n
}

// SampleCounts returns the number of indexed vectors per label.
func (idx *ReferenceIndex) SampleCounts() map[string]int {
	out := make(map[string]int, len(idx.labels))
	for _, l := range idx.labels {
		out[l] = len(idx.samples[l])
	}
	return out
}

// CorpusCounts returns the number of reference images found per label,
// including files beyond the per-label cap.
func (idx *ReferenceIndex) CorpusCounts() map[string]int {
	out := make(map[string]int, len(idx.corpusCounts))
	for l, n := range idx.corpusCounts {
		out[l] = n
	}
	return out
}

// LargestLabel returns the label with the most reference images, ties broken
// by lexical order.
func (idx *ReferenceIndex) LargestLabel() string {
	best, bestN := "", -1
	for _, l := range idx.labels {
		if n := idx.corpusCounts[l]; n > bestN {
			best, bestN = l, n
		}
	}
	return best
}

// Centroid returns the L2-normalized mean vector of label. A label without
// samples has a zero centroid.
func (idx *ReferenceIndex) Centroid(label string) (Vector, error) {
	c, ok := idx.centroidMap()[label]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownLabel, "%q", label)
	}
	return c, nil
}

func (idx *ReferenceIndex) centroidMap() map[string]Vector {
	idx.centroidsOnce.Do(func() {
		idx.centroids = make(map[string]Vector, len(idx.labels))
		for _, l := range idx.labels {
			vs := make([]Vector, 0, len(idx.samples[l]))
			for _, s := range idx.samples[l] {
				vs = append(vs, s.Vector)
			}
			idx.centroids[l] = meanVector(vs, idx.dim).Normalized()
		}
	})
	return idx.centroids
}
