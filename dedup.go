package artstyle

import (
	"image"

	"github.com/corona10/goimagehash"
)

// referenceDedup skips reference images that are perceptually identical to an
// already indexed image of the same label. Used sequentially by BuildIndex.
type referenceDedup struct {
	threshold int
	hashes    []*goimagehash.ImageHash
}

func newReferenceDedup(threshold int) *referenceDedup {
	if threshold <= 0 {
		return nil
	}
	return &referenceDedup{threshold: threshold}
}

// hash computes the dHash of img; nil when hashing fails.
func (d *referenceDedup) hash(img image.Image) *goimagehash.ImageHash {
	if d == nil {
		return nil
	}
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil
	}
	return h
}

// seen reports whether h is within threshold of a kept hash. Unseen hashes are
// kept. A nil hash is never a duplicate.
func (d *referenceDedup) seen(h *goimagehash.ImageHash) bool {
	if d == nil || h == nil {
		return false
	}
	for _, prev := range d.hashes {
		dist, err := h.Distance(prev)
		if err == nil && dist < d.threshold {
			return true
		}
	}
	d.hashes = append(d.hashes, h)
	return false
}
