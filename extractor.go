package artstyle

import (
	"image"
	"log/slog"
)

// Method tags the algorithm that produced a Vector. Vectors with different
// methods are never compared.
type Method string

const (
	MethodMobileNetV2 Method = "mobilenetv2" // deep embedding, ONNX MobileNetV2 pooled activation
	MethodCVHSV       Method = "cvhsv"       // handcrafted HSV + edge-magnitude histogram
	MethodNone        Method = "none"        // no extraction happened (fallback results)
	MethodAuto        Method = "auto"        // factory only: try deep, else handcrafted
)

// FeatureExtractor converts a decoded image into a fixed-length vector.
// Implementations must be deterministic and safe for concurrent use.
type FeatureExtractor interface {
	Extract(img image.Image) (Vector, error)
	Method() Method
	Dim() int
}

// Layout is the tensor layout expected by a deep backbone.
type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

// ExtractorConfig selects and configures the feature extractor.
// Zero values mean "use defaults".
type ExtractorConfig struct {
	Method Method // MethodAuto (default), MethodCVHSV or MethodMobileNetV2

	// Deep backbone settings; ignored by the handcrafted extractor.
	ModelPath   string // ONNX MobileNetV2 file with global average pooling
	LibraryPath string // onnxruntime shared library; empty = runtime default
	InputName   string // default "input_1"
	OutputName  string // default "global_average_pooling2d"
	Layout      Layout // default LayoutNHWC
	OutputDim   int    // default 1280
}

func (c *ExtractorConfig) defaults() {
	if c.Method == "" {
		c.Method = MethodAuto
	}
	if c.InputName == "" {
		c.InputName = "input_1"
	}
	if c.OutputName == "" {
		c.OutputName = "global_average_pooling2d"
	}
	if c.Layout == "" {
		c.Layout = LayoutNHWC
	}
	if c.OutputDim <= 0 {
		c.OutputDim = mobileNetOutputDim
	}
}

// NewExtractor tries the deep-learning runtime once and returns the deep
// extractor when it is usable, the handcrafted one otherwise. The decision is
// logged here and never re-checked.
func NewExtractor(cfg ExtractorConfig, logger *slog.Logger) FeatureExtractor {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Method == MethodCVHSV {
		logger.Info("artstyle: feature extractor selected", "method", MethodCVHSV, "reason", "configured")
		return NewHistogramExtractor()
	}

	deep, err := openDeepRuntime(cfg)
	if err != nil {
		logger.Warn("artstyle: deep runtime unavailable, using handcrafted features",
			"requested", cfg.Method, "fallback", MethodCVHSV, "error", err.Error())
		return NewHistogramExtractor()
	}

	logger.Info("artstyle: feature extractor selected", "method", deep.Method(), "dim", deep.Dim(), "model", cfg.ModelPath)
	return deep
}
