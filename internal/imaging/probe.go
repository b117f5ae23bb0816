package imaging

import (
	"errors"
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/tiff"
)

// ErrBadTIFF marks a file whose TIFF structure cannot be read.
var ErrBadTIFF = errors.New("imaging: malformed tiff")

// TIFF compression tag values.
const (
	CompressionNone  = 1
	CompressionG3    = 3
	CompressionG4    = 4
	CompressionLZW   = 5
	tagBitsPerSample = 258
	tagCompression   = 259
	tagSamples       = 277
	tagXResolution   = 282
	tagYResolution   = 283
)

// TIFFInfo holds the tags of the first IFD that drive normalization.
// Missing tags take their TIFF 6.0 defaults.
type TIFFInfo struct {
	BitsPerSample   int
	SamplesPerPixel int
	Compression     int
	XResolution     float64
	YResolution     float64
}

// BiLevel reports whether the image is one sample of one bit.
func (i TIFFInfo) BiLevel() bool {
	return i.BitsPerSample == 1 && i.SamplesPerPixel == 1
}

// ProbeTIFF reads the first IFD of the TIFF at path. Open failures are
// returned as is; structural problems wrap ErrBadTIFF.
func ProbeTIFF(path string) (TIFFInfo, error) {
	info := TIFFInfo{BitsPerSample: 1, SamplesPerPixel: 1, Compression: CompressionNone}

	f, err := os.Open(path)
	if err != nil {
		return info, err
	}
	defer f.Close()

	t, err := tiff.Decode(f)
	if err != nil {
		return info, fmt.Errorf("%w: %v", ErrBadTIFF, err)
	}
	if len(t.Dirs) == 0 {
		return info, fmt.Errorf("%w: no image file directory", ErrBadTIFF)
	}

	for _, tag := range t.Dirs[0].Tags {
		switch tag.Id {
		case tagBitsPerSample:
			info.BitsPerSample, err = firstInt(tag)
		case tagSamples:
			info.SamplesPerPixel, err = firstInt(tag)
		case tagCompression:
			info.Compression, err = firstInt(tag)
		case tagXResolution:
			info.XResolution, err = rational(tag)
		case tagYResolution:
			info.YResolution, err = rational(tag)
		}
		if err != nil {
			return info, fmt.Errorf("%w: tag %d: %v", ErrBadTIFF, tag.Id, err)
		}
	}
	return info, nil
}

func firstInt(tag *tiff.Tag) (int, error) {
	if tag.Count == 0 {
		return 0, errors.New("empty field")
	}
	return tag.Int(0)
}

// rational returns 0 for a zero denominator.
func rational(tag *tiff.Tag) (float64, error) {
	if tag.Count == 0 {
		return 0, errors.New("empty field")
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0, err
	}
	return float64(num) / float64(den), nil
}
