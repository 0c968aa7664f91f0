//go:build !onnx

package artstyle

import "github.com/pkg/errors"

// openDeepRuntime reports the deep runtime as missing in builds without the
// onnx tag.
func openDeepRuntime(ExtractorConfig) (FeatureExtractor, error) {
	return nil, errors.Wrap(ErrRuntimeUnavailable, "built without the onnx tag")
}
