package artstyle

import "image"

const (
	mobileNetInputSize = 224
	mobileNetOutputDim = 1280
)

// mobileNetInput resizes img to 224x224 and scales every channel to [-1, 1]
// (x/127.5 - 1, the Keras MobileNetV2 preprocessing) in the given layout.
// The result has 3*224*224 values.
func mobileNetInput(img image.Image, layout Layout) []float32 {
	const n = mobileNetInputSize
	rgba := resizeRGBA(img, n, n)
	out := make([]float32, 3*n*n)

	for y := range n {
		for x := range n {
			i := rgba.PixOffset(x, y)
			for c := range 3 {
				v := float32(rgba.Pix[i+c])/127.5 - 1
				if layout == LayoutNCHW {
					out[c*n*n+y*n+x] = v
				} else {
					out[(y*n+x)*3+c] = v
				}
			}
		}
	}
	return out
}
