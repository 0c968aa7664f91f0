package artstyle

import "github.com/pkg/errors"

var (
	// ErrImageDecode is returned for unreadable or corrupt image input.
	// It is the only failure Classify surfaces to callers.
	ErrImageDecode = errors.New("artstyle: image decode failed")

	// ErrDatasetUnavailable means the reference corpus is missing, empty or
	// yielded no usable sample. Classification degrades to filename mode.
	ErrDatasetUnavailable = errors.New("artstyle: reference dataset unavailable")

	// ErrIndexNotFound means no persisted index exists at the given location.
	ErrIndexNotFound = errors.New("artstyle: persisted index not found")

	// ErrMethodMismatch means the persisted index was built by a different
	// extraction method, or with a different vector width, than the active one.
	ErrMethodMismatch = errors.New("artstyle: index extraction method mismatch")

	// ErrRuntimeUnavailable means the deep-learning runtime could not be loaded.
	ErrRuntimeUnavailable = errors.New("artstyle: deep-learning runtime unavailable")

	// ErrDimensionMismatch means two vectors of different length were combined.
	ErrDimensionMismatch = errors.New("artstyle: feature vector dimension mismatch")

	// ErrUnknownLabel is returned for lookups of a label outside the index.
	ErrUnknownLabel = errors.New("artstyle: unknown label")
)

// IsCacheMiss reports whether err means a persisted index cannot be used and
// must be rebuilt.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrIndexNotFound) || errors.Is(err, ErrMethodMismatch)
}

// ErrFetch means a remote image could not be downloaded.
var ErrFetch = errors.New("artstyle: image fetch failed")
