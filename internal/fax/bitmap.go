package fax

import (
	"image"
	"image/color"
)

// Bitmap is a bi-level raster stored row-major, one bool per pixel.
// A true pixel is black.
type Bitmap struct {
	Width  int
	Height int
	Black  []bool
}

// NewBitmap returns an all-white bitmap.
func NewBitmap(width, height int) *Bitmap {
	return &Bitmap{Width: width, Height: height, Black: make([]bool, width*height)}
}

// FromImage thresholds img at mid-gray. Fully transparent pixels are white.
func FromImage(img image.Image) *Bitmap {
	b := img.Bounds()
	bm := NewBitmap(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := bm.Row(y - b.Min.Y)
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			row[x-b.Min.X] = g.Y < 0x8000
		}
	}
	return bm
}

// Row returns the pixels of row y. The slice aliases the bitmap.
func (b *Bitmap) Row(y int) []bool {
	return b.Black[y*b.Width : (y+1)*b.Width]
}

// Set marks pixel (x, y) black or white.
func (b *Bitmap) Set(x, y int, black bool) {
	b.Black[y*b.Width+x] = black
}

// Image renders the bitmap as an 8-bit gray image.
func (b *Bitmap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for i, black := range b.Black {
		if !black {
			img.Pix[i] = 0xff
		}
	}
	return img
}
