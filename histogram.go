package artstyle

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

const (
	histogramSize = 256 // resized edge length before binning
	hueBins       = 8
	satBins       = 8
	valBins       = 8
	edgeBins      = 16

	// histogramDim is the length of every cvhsv vector.
	histogramDim = hueBins*satBins*valBins + edgeBins
)

// HistogramExtractor is the handcrafted cvhsv strategy: an 8x8x8 HSV colour
// histogram plus a 16-bin Sobel gradient-magnitude histogram, each summing to 1,
// concatenated and L2-normalized. It has no runtime dependency and is
// bit-for-bit deterministic.
type HistogramExtractor struct{}

// NewHistogramExtractor returns the handcrafted extractor.
func NewHistogramExtractor() *HistogramExtractor { return &HistogramExtractor{} }

func (*HistogramExtractor) Method() Method { return MethodCVHSV }

func (*HistogramExtractor) Dim() int { return histogramDim }

// Extract computes the cvhsv vector for img.
func (*HistogramExtractor) Extract(img image.Image) (Vector, error) {
	rgba := resizeRGBA(img, histogramSize, histogramSize)

	colour := hsvHistogram(rgba)
	gray := grayPlane(rgba)
	edges := edgeHistogram(sobelMagnitude(gray, histogramSize, histogramSize))

	feat := make(Vector, 0, histogramDim)
	feat = append(feat, colour...)
	feat = append(feat, edges...)
	return feat.Normalized(), nil
}

// resizeRGBA scales img to w x h with bilinear interpolation.
func resizeRGBA(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// rgbToHSV converts 8-bit RGB to OpenCV-style HSV: H in [0,180), S and V in [0,255].
func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	maxc := math.Max(rf, math.Max(gf, bf))
	minc := math.Min(rf, math.Min(gf, bf))
	v = maxc
	delta := maxc - minc
	if maxc > 0 {
		s = delta / maxc
	}
	if delta > 0 {
		switch maxc {
		case rf:
			h = (gf - bf) / delta / 6
		case gf:
			h = (2 + (bf-rf)/delta) / 6
		default:
			h = (4 + (rf-gf)/delta) / 6
		}
		h -= math.Floor(h)
	}
	return h * 180, s * 255, v * 255
}

func binOf(x, upper float64, bins int) int {
	b := int(x / upper * float64(bins))
	if b < 0 {
		return 0
	}
	if b >= bins {
		return bins - 1
	}
	return b
}

func hsvHistogram(img *image.RGBA) []float32 {
	counts := make([]float64, hueBins*satBins*valBins)
	b := img.Bounds()
	total := 0.0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			h, s, v := rgbToHSV(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
			hb := binOf(h, 180, hueBins)
			sb := binOf(s, 256, satBins)
			vb := binOf(v, 256, valBins)
			counts[(hb*satBins+sb)*valBins+vb]++
			total++
		}
	}
	return normalizeSum(counts, total)
}

// grayPlane returns luma in [0,1], row-major.
func grayPlane(img *image.RGBA) []float64 {
	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			r, g, bl := float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
			out = append(out, (0.299*r+0.587*g+0.114*bl)/255)
		}
	}
	return out
}

// sobelMagnitude applies 3x3 Sobel kernels with replicated borders.
func sobelMagnitude(gray []float64, w, h int) []float64 {
	at := func(x, y int) float64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return gray[y*w+x]
	}
	mag := make([]float64, w*h)
	for y := range h {
		for x := range w {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			mag[y*w+x] = math.Sqrt(gx*gx + gy*gy)
		}
	}
	return mag
}

func edgeHistogram(mag []float64) []float32 {
	upper := 0.0
	for _, m := range mag {
		upper = math.Max(upper, m)
	}
	upper += 1e-6

	counts := make([]float64, edgeBins)
	for _, m := range mag {
		counts[binOf(m, upper, edgeBins)]++
	}
	return normalizeSum(counts, float64(len(mag)))
}

func normalizeSum(counts []float64, total float64) []float32 {
	out := make([]float32, len(counts))
	if total <= 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float32(c / total)
	}
	return out
}
