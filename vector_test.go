package artstyle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Vector
		want float64
	}{
		{name: "identical", a: Vector{1, 2, 3}, b: Vector{1, 2, 3}, want: 1},
		{name: "scaled", a: Vector{1, 0}, b: Vector{5, 0}, want: 1},
		{name: "orthogonal", a: Vector{1, 0}, b: Vector{0, 1}, want: 0},
		{name: "opposite", a: Vector{1, 1}, b: Vector{-1, -1}, want: -1},
		{name: "zero vector", a: Vector{0, 0}, b: Vector{1, 1}, want: 0},
		{name: "length mismatch", a: Vector{1, 2}, b: Vector{1, 2, 3}, want: 0},
		{name: "empty", a: Vector{}, b: Vector{}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := CosineSimilarity(tc.a, tc.b)
			assert.InDelta(t, tc.want, got, 1e-6)
			assert.LessOrEqual(t, math.Abs(got), 1.0)
		})
	}
}

func TestVectorNormalized(t *testing.T) {
	t.Parallel()

	v := Vector{3, 4}
	n := v.Normalized()
	assert.InDelta(t, 1, n.Norm(), 1e-6)
	assert.InDelta(t, 0.6, n[0], 1e-6)
	assert.Equal(t, Vector{3, 4}, v, "input must not be modified")

	zero := Vector{0, 0, 0}.Normalized()
	assert.Equal(t, Vector{0, 0, 0}, zero)
}

func TestDot(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 11, Dot(Vector{1, 2}, Vector{3, 4}), 1e-9)
	assert.Zero(t, Dot(Vector{1}, Vector{1, 2}))
}

func TestMeanVector(t *testing.T) {
	t.Parallel()

	got := meanVector([]Vector{{1, 3}, {3, 5}}, 2)
	assert.Equal(t, Vector{2, 4}, got)
	assert.Equal(t, Vector{0, 0, 0}, meanVector(nil, 3))
}
