package artstyle

import (
	"bytes"
	"image"
	"math"
)

const (
	analysisSize = 256

	// edgeThreshold is the Sobel magnitude (luma in [0,1]) above which a pixel
	// counts as an edge.
	edgeThreshold = 0.25
)

// ImageAnalysis summarises the visual properties of an artwork.
type ImageAnalysis struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Format      string  `json:"format"`
	AspectRatio float64 `json:"aspect_ratio"`
	Orientation string  `json:"orientation"` // landscape, portrait or square

	MeanHue        float64 `json:"mean_hue"`        // degrees [0,360), circular mean
	MeanSaturation float64 `json:"mean_saturation"` // [0,1]
	MeanValue      float64 `json:"mean_value"`      // [0,1]
	EdgeDensity    float64 `json:"edge_density"`    // fraction of edge pixels, [0,1]

	Metadata *ArtworkMetadata  `json:"metadata,omitempty"`
	Rights   *RightsAssessment `json:"rights,omitempty"`
}

// AnalyzeImage decodes data and computes its ImageAnalysis. Undecodable data
// is ErrImageDecode.
func AnalyzeImage(data []byte, maxPixels int) (*ImageAnalysis, error) {
	img, err := DecodeImage(data, maxPixels)
	if err != nil {
		return nil, err
	}
	_, format, _ := image.DecodeConfig(bytes.NewReader(data))

	b := img.Bounds()
	a := &ImageAnalysis{
		Width:       b.Dx(),
		Height:      b.Dy(),
		Format:      format,
		AspectRatio: float64(b.Dx()) / float64(b.Dy()),
		Metadata:    ExtractArtworkMetadata(data),
	}
	switch {
	case b.Dx() > b.Dy():
		a.Orientation = "landscape"
	case b.Dx() < b.Dy():
		a.Orientation = "portrait"
	default:
		a.Orientation = "square"
	}

	rgba := resizeRGBA(img, analysisSize, analysisSize)
	a.MeanHue, a.MeanSaturation, a.MeanValue = meanHSV(rgba)
	a.EdgeDensity = edgeDensity(sobelMagnitude(grayPlane(rgba), analysisSize, analysisSize))

	rights := AssessRights("", "", a.Metadata)
	a.Rights = &rights
	return a, nil
}

// Analyze computes the visual properties of an artwork.
func (s *Service) Analyze(data []byte) (*ImageAnalysis, error) {
	return AnalyzeImage(data, s.cfg.MaxPixels)
}

// meanHSV averages saturation and value, and takes the circular mean of hue
// weighted by saturation so greys do not pull it.
func meanHSV(img *image.RGBA) (hue, sat, val float64) {
	b := img.Bounds()
	var sinSum, cosSum, sSum, vSum float64
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			h, s, v := rgbToHSV(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
			s, v = s/255, v/255
			rad := h / 180 * 2 * math.Pi
			sinSum += s * math.Sin(rad)
			cosSum += s * math.Cos(rad)
			sSum += s
			vSum += v
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	if sinSum != 0 || cosSum != 0 {
		hue = math.Atan2(sinSum, cosSum) * 180 / math.Pi
		if hue < 0 {
			hue += 360
		}
	}
	return hue, sSum / float64(n), vSum / float64(n)
}

func edgeDensity(mag []float64) float64 {
	if len(mag) == 0 {
		return 0
	}
	edges := 0
	for _, m := range mag {
		if m > edgeThreshold {
			edges++
		}
	}
	return float64(edges) / float64(len(mag))
}
