package artstyle

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the decoded size of a single image (64 MP).
const DefaultMaxPixels = 64 << 20

// imageExtensions are the reference corpus file types, lowercased.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsImageFile reports whether name has a supported image extension (case-insensitive).
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// DecodeImage decodes raw bytes into an image. Any failure, including an image
// larger than maxPixels, is reported as ErrImageDecode. maxPixels <= 0 means
// DefaultMaxPixels.
func DecodeImage(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrImageDecode, "empty input")
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrImageDecode, "read header: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Wrapf(ErrImageDecode, "invalid %s dimensions %dx%d", format, cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, errors.Wrapf(ErrImageDecode, "%s image too large: %dx%d", format, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrImageDecode, "decode %s: %v", format, err)
	}
	return img, nil
}
