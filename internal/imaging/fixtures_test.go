package imaging

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/hhrutter/tiff"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/tipopdf/internal/fax"
)

func pageBitmap() *fax.Bitmap {
	bm := fax.NewBitmap(120, 80)
	for y := 10; y < 70; y++ {
		for x := 10; x < 110; x++ {
			if (x/7+y/5)%3 == 0 {
				bm.Set(x, y, true)
			}
		}
	}
	return bm
}

func writeFaxTIFF(t *testing.T, path string, c fax.Compression) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fax.Encode(&buf, pageBitmap(), &fax.Options{Compression: c, XResolution: 200}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), uint8(x + y), 0xff})
		}
	}
	return img
}

func writeImageTIFF(t *testing.T, path string, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

func pageDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "pages")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}
