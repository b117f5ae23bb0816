package fax

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Compression selects the strip encoding written by Encode.
type Compression uint16

const (
	None   Compression = 1
	Group4 Compression = 4
)

const DefaultResolution = 300

// Options configures Encode. A nil Options writes Group 4 at 300 dpi.
type Options struct {
	Compression Compression
	XResolution uint32
	YResolution uint32
}

const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagFillOrder       = 266
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagXResolution     = 282
	tagYResolution     = 283
	tagT6Options       = 293
	tagResolutionUnit  = 296

	dtShort    = 3
	dtLong     = 4
	dtRational = 5

	photometricWhiteIsZero = 0
	resolutionUnitInch     = 2
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	value uint32
}

// Encode writes bm as a single-strip, little-endian, 1-bit WhiteIsZero
// TIFF.
func Encode(w io.Writer, bm *Bitmap, opts *Options) error {
	o := Options{Compression: Group4}
	if opts != nil {
		o = *opts
	}
	if o.XResolution == 0 {
		o.XResolution = DefaultResolution
	}
	if o.YResolution == 0 {
		o.YResolution = o.XResolution
	}

	var strip bytes.Buffer
	switch o.Compression {
	case Group4:
		if err := EncodeG4(&strip, bm); err != nil {
			return err
		}
	case None:
		if bm.Width <= 0 || bm.Height <= 0 {
			return ErrEmptyBitmap
		}
		packRows(&strip, bm)
	default:
		return fmt.Errorf("fax: unsupported compression %d", o.Compression)
	}

	entries := []ifdEntry{
		{tagImageWidth, dtLong, uint32(bm.Width)},
		{tagImageLength, dtLong, uint32(bm.Height)},
		{tagBitsPerSample, dtShort, 1},
		{tagCompression, dtShort, uint32(o.Compression)},
		{tagPhotometric, dtShort, photometricWhiteIsZero},
		{tagFillOrder, dtShort, 1},
		{tagSamplesPerPixel, dtShort, 1},
		{tagRowsPerStrip, dtLong, uint32(bm.Height)},
		{tagStripByteCounts, dtLong, uint32(strip.Len())},
		{tagResolutionUnit, dtShort, resolutionUnitInch},
	}
	if o.Compression == Group4 {
		entries = append(entries, ifdEntry{tagT6Options, dtLong, 0})
	}
	// Out-of-line values follow the IFD: two rationals, then the strip.
	ifdSize := 2 + 12*(len(entries)+3) + 4
	rationals := uint32(8 + ifdSize)
	entries = append(entries,
		ifdEntry{tagXResolution, dtRational, rationals},
		ifdEntry{tagYResolution, dtRational, rationals + 8},
		ifdEntry{tagStripOffsets, dtLong, rationals + 16},
	)
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("II")
	buf.Write(le.AppendUint16(nil, 42))
	buf.Write(le.AppendUint32(nil, 8))
	buf.Write(le.AppendUint16(nil, uint16(len(entries))))
	for _, e := range entries {
		buf.Write(le.AppendUint16(nil, e.tag))
		buf.Write(le.AppendUint16(nil, e.typ))
		buf.Write(le.AppendUint32(nil, 1))
		if e.typ == dtShort {
			buf.Write(le.AppendUint16(nil, uint16(e.value)))
			buf.Write([]byte{0, 0})
		} else {
			buf.Write(le.AppendUint32(nil, e.value))
		}
	}
	buf.Write(le.AppendUint32(nil, 0))
	for _, r := range []uint32{o.XResolution, o.YResolution} {
		buf.Write(le.AppendUint32(nil, r))
		buf.Write(le.AppendUint32(nil, 1))
	}
	buf.Write(strip.Bytes())

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("fax: writing tiff: %w", err)
	}
	return nil
}

// packRows packs pixels MSB-first with each row padded to a byte boundary.
// Black is 1 under WhiteIsZero.
func packRows(w *bytes.Buffer, bm *Bitmap) {
	stride := (bm.Width + 7) / 8
	row := make([]byte, stride)
	for y := 0; y < bm.Height; y++ {
		clear(row)
		for x, black := range bm.Row(y) {
			if black {
				row[x/8] |= 0x80 >> (x % 8)
			}
		}
		w.Write(row)
	}
}
