package artstyle

import "math"

// Vector is a fixed-length feature vector. Its length and meaning depend on
// the Method that produced it.
type Vector []float32

// normEpsilon guards divisions by a vector norm.
const normEpsilon = 1e-9

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-length copy of v. A zero vector stays zero.
func (v Vector) Normalized() Vector {
	out := make(Vector, len(v))
	n := v.Norm()
	if n < normEpsilon {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Dot returns the dot product of a and b, or 0 when their lengths differ.
func Dot(a, b Vector) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// CosineSimilarity returns the cosine of the angle between a and b in [-1, 1].
// Mismatched lengths and zero vectors yield 0.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push |sim| slightly past 1.
	return math.Max(-1, math.Min(1, sim))
}

// meanVector averages vs component-wise. All vectors must share dim.
func meanVector(vs []Vector, dim int) Vector {
	sum := make([]float64, dim)
	for _, v := range vs {
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	out := make(Vector, dim)
	if len(vs) == 0 {
		return out
	}
	for i := range sum {
		out[i] = float32(sum[i] / float64(len(vs)))
	}
	return out
}
