package imaging

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/hhrutter/tiff"
	_ "golang.org/x/image/bmp"
)

// ErrUndecodable marks a file no registered codec can decode.
var ErrUndecodable = errors.New("imaging: undecodable image")

// IsTIFF reports whether path carries a TIFF extension.
func IsTIFF(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return true
	}
	return false
}

// Decode reads the image at path with whichever registered codec matches
// its content. Open failures are returned as is.
func Decode(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	img, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrUndecodable, filepath.Base(path), err)
	}
	return img, format, nil
}
