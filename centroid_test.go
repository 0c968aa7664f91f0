package artstyle

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clusterIndex builds three labels of five samples each, clustered around the
// unit axes of a 3-dimensional space.
func clusterIndex(t *testing.T, extra map[string]int) *ReferenceIndex {
	t.Helper()
	axes := map[string]Vector{"a": {1, 0, 0}, "b": {0, 1, 0}, "c": {0, 0, 1}}
	noise := []Vector{{0, 0, 0}, {0.1, 0, 0}, {0, 0.1, 0}, {0, 0, 0.1}, {0.05, 0.05, 0.05}}

	var samples []ReferenceSample
	for label, axis := range axes {
		for _, n := range noise {
			v := make(Vector, 3)
			for i := range v {
				v[i] = axis[i] + n[i]
			}
			samples = append(samples, ReferenceSample{Label: label, Vector: v.Normalized()})
		}
	}
	idx, err := NewReferenceIndex(MethodCVHSV, 3, samples, extra)
	require.NoError(t, err)
	return idx
}

func TestCentroidScorer_Score(t *testing.T) {
	t.Parallel()

	idx := clusterIndex(t, nil)
	scores, err := CentroidScorer{}.Score(Vector{0.1, 0.9, 0.05}, idx)
	require.NoError(t, err)

	sum := 0.0
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0)
		sum += s
	}
	assert.InDelta(t, 1, sum, 1e-9)

	label, conf := CentroidScorer{}.Predict(scores)
	assert.Equal(t, "b", label)
	assert.Greater(t, conf, 0.5)
}

func TestCentroidScorer_Temperature(t *testing.T) {
	t.Parallel()

	idx := clusterIndex(t, nil)
	q := Vector{0.3, 0.7, 0.2}
	sharp, err := CentroidScorer{Temperature: 0.01}.Score(q, idx)
	require.NoError(t, err)
	soft, err := CentroidScorer{Temperature: 1}.Score(q, idx)
	require.NoError(t, err)
	assert.Greater(t, sharp["b"], soft["b"])
}

func TestCentroidScorer_ZeroSampleLabel(t *testing.T) {
	t.Parallel()

	idx := clusterIndex(t, map[string]int{"d": 12})
	scores, err := CentroidScorer{}.Score(Vector{1, 0, 0}, idx)
	require.NoError(t, err)

	assert.Contains(t, scores, "d")
	assert.Zero(t, scores["d"])
	assert.InDelta(t, 1, scores["a"]+scores["b"]+scores["c"], 1e-9)
}

func TestCentroidScorer_DimensionMismatch(t *testing.T) {
	t.Parallel()

	_, err := CentroidScorer{}.Score(Vector{1, 0}, clusterIndex(t, nil))
	assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)

	_, err = CentroidScorer{}.Score(Vector{1, 0}, nil)
	assert.True(t, errors.Is(err, ErrDatasetUnavailable), "got %v", err)
}

func TestCentroidScorer_PredictTieBreak(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scores map[string]float64
		want   string
	}{
		{name: "clear winner", scores: map[string]float64{"warli": 0.2, "pithora": 0.7, "madhubani": 0.1}, want: "pithora"},
		{name: "two-way tie", scores: map[string]float64{"warli": 0.5, "madhubani": 0.5}, want: "madhubani"},
		{name: "all zero", scores: map[string]float64{"warli": 0, "pithora": 0}, want: "pithora"},
		{name: "empty", scores: map[string]float64{}, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, _ := CentroidScorer{}.Predict(tc.scores)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCentroidScorer_EqualCentroidsTie(t *testing.T) {
	t.Parallel()

	idx, err := NewReferenceIndex(MethodCVHSV, 2, []ReferenceSample{
		{Label: "warli", Vector: Vector{1, 0}},
		{Label: "madhubani", Vector: Vector{1, 0}},
	}, nil)
	require.NoError(t, err)

	scores, err := CentroidScorer{}.Score(Vector{1, 0}, idx)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, scores["warli"], 1e-12)

	label, _ := CentroidScorer{}.Predict(scores)
	assert.Equal(t, "madhubani", label)
}

func TestBlendFilename(t *testing.T) {
	t.Parallel()

	p := map[string]float64{"madhubani": 0.45, "pithora": 0.35, "warli": 0.2}

	unchanged := blendFilename(p, map[string]float64{"madhubani": 0, "pithora": 0, "warli": 0}, 0.3)
	assert.Equal(t, p, unchanged)

	blended := blendFilename(p, map[string]float64{"warli": 0.95}, 0.3)
	sum := 0.0
	for _, v := range blended {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-9)
	assert.Greater(t, blended["warli"], p["warli"])

	label, _ := argmax(blended)
	assert.Equal(t, "warli", label, "0.7*0.2+0.3*0.95 beats 0.7*0.45")
}
