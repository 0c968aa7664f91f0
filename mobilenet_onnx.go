//go:build onnx

package artstyle

import (
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// MobileNetExtractor runs a pretrained MobileNetV2 backbone (global average
// pooling, no classifier head) through onnxruntime and returns the
// L2-normalized pooled activation. Session access is serialized.
type MobileNetExtractor struct {
	mu      sync.Mutex
	layout  Layout
	dim     int
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

var ortInit sync.Once
var ortInitErr error

func openDeepRuntime(cfg ExtractorConfig) (FeatureExtractor, error) {
	if cfg.ModelPath == "" {
		return nil, errors.Wrap(ErrRuntimeUnavailable, "no model path configured")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(ErrRuntimeUnavailable, "model %s: %v", cfg.ModelPath, err)
	}

	ortInit.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, errors.Wrapf(ErrRuntimeUnavailable, "initialize onnxruntime: %v", ortInitErr)
	}

	const n = mobileNetInputSize
	inShape := ort.NewShape(1, n, n, 3)
	if cfg.Layout == LayoutNCHW {
		inShape = ort.NewShape(1, 3, n, n)
	}
	input, err := ort.NewEmptyTensor[float32](inShape)
	if err != nil {
		return nil, errors.Wrapf(ErrRuntimeUnavailable, "input tensor: %v", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.OutputDim)))
	if err != nil {
		_ = input.Destroy()
		return nil, errors.Wrapf(ErrRuntimeUnavailable, "output tensor: %v", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, errors.Wrapf(ErrRuntimeUnavailable, "load session: %v", err)
	}

	return &MobileNetExtractor{
		layout:  cfg.Layout,
		dim:     cfg.OutputDim,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

func (*MobileNetExtractor) Method() Method { return MethodMobileNetV2 }

func (m *MobileNetExtractor) Dim() int { return m.dim }

// Extract runs one forward pass.
func (m *MobileNetExtractor) Extract(img image.Image) (Vector, error) {
	data := mobileNetInput(img, m.layout)

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.input.GetData(), data)
	if err := m.session.Run(); err != nil {
		return nil, errors.Wrap(err, "mobilenet forward pass")
	}
	feat := make(Vector, m.dim)
	copy(feat, m.output.GetData())
	return feat.Normalized(), nil
}

// Close releases the session and tensors.
func (m *MobileNetExtractor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		_ = m.session.Destroy()
		m.session = nil
	}
	_ = m.input.Destroy()
	_ = m.output.Destroy()
	return nil
}
