package artstyle

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeJPEG returns a minimal valid JPEG of the given dimensions.
func makeJPEG(w, h int) []byte {
	img := solidImage(w, h, color.RGBA{R: 100, G: 149, B: 237, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic("makeJPEG: " + err.Error())
	}
	return buf.Bytes()
}

func makeGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, solidImage(w, h, color.RGBA{R: 200, A: 255}), nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// stripeImage alternates a and b every period pixels, horizontally or vertically.
func stripeImage(w, h, period int, a, b color.RGBA, vertical bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			k := y
			if vertical {
				k = x
			}
			if (k/period)%2 == 0 {
				img.SetRGBA(x, y, a)
			} else {
				img.SetRGBA(x, y, b)
			}
		}
	}
	return img
}

// writeCorpus writes each image as PNG under root/<folder>/<name>.
func writeCorpus(t *testing.T, root string, files map[string]map[string]image.Image) {
	t.Helper()
	for folder, imgs := range files {
		dir := filepath.Join(root, folder)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for name, img := range imgs {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), encodePNG(t, img), 0o644))
		}
	}
}

func TestIsImageFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"scan.Tif", true},
		{"x.webp", true},
		{"x.bmp", true},
		{"notes.txt", false},
		{"README", false},
		{"archive.jpg.zip", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsImageFile(tc.name))
		})
	}
}

func TestDecodeImage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		data      []byte
		maxPixels int
		wantErr   bool
	}{
		{name: "jpeg", data: makeJPEG(16, 8)},
		{name: "png", data: encodePNG(t, solidImage(4, 4, color.RGBA{G: 255, A: 255}))},
		{name: "gif", data: makeGIF(t, 5, 5)},
		{name: "empty", data: nil, wantErr: true},
		{name: "garbage", data: []byte("definitely not an image"), wantErr: true},
		{name: "truncated jpeg", data: makeJPEG(64, 64)[:40], wantErr: true},
		{name: "over pixel budget", data: makeJPEG(32, 32), maxPixels: 32*32 - 1, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			img, err := DecodeImage(tc.data, tc.maxPixels)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrImageDecode), "want ErrImageDecode, got %v", err)
				assert.Nil(t, img)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, img)
		})
	}
}
