package fax

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

var ErrEmptyBitmap = errors.New("fax: bitmap has no pixels")

type bitWriter struct {
	w   *bufio.Writer
	acc uint64
	n   uint
}

func (b *bitWriter) put(c code) {
	b.acc = b.acc<<c.n | uint64(c.bits)
	b.n += c.n
	for b.n >= 8 {
		b.w.WriteByte(byte(b.acc >> (b.n - 8)))
		b.n -= 8
	}
}

func (b *bitWriter) flush() error {
	if b.n > 0 {
		b.w.WriteByte(byte(b.acc << (8 - b.n)))
		b.n = 0
	}
	return b.w.Flush()
}

// putRun writes a run length using make-up codes followed by exactly one
// terminating code.
func (b *bitWriter) putRun(codes *runCodes, run int) {
	for run >= 2624 {
		b.put(codes.makeup[len(codes.makeup)-1])
		run -= 2560
	}
	if run >= 64 {
		b.put(codes.makeup[run/64-1])
		run %= 64
	}
	b.put(codes.terminating[run])
}

// EncodeG4 writes bm as a single CCITT Group 4 (T.6) strip, MSB-first,
// terminated by an end-of-facsimile-block.
func EncodeG4(w io.Writer, bm *Bitmap) error {
	if bm.Width <= 0 || bm.Height <= 0 {
		return ErrEmptyBitmap
	}
	bw := &bitWriter{w: bufio.NewWriter(w)}
	ref := make([]bool, bm.Width)
	for y := 0; y < bm.Height; y++ {
		cur := bm.Row(y)
		encodeRow(bw, cur, ref)
		ref = cur
	}
	bw.put(eolCode)
	bw.put(eolCode)
	if err := bw.flush(); err != nil {
		return fmt.Errorf("fax: writing G4 data: %w", err)
	}
	return nil
}

func pixel(row []bool, i int) bool {
	return i < len(row) && row[i]
}

// findDiff returns the first index at or after start whose color differs
// from black, or len(row).
func findDiff(row []bool, start int, black bool) int {
	i := start
	for i < len(row) && row[i] == black {
		i++
	}
	return i
}

func findDiff2(row []bool, start int, black bool) int {
	if start < len(row) {
		return findDiff(row, start, black)
	}
	return len(row)
}

func encodeRow(bw *bitWriter, cur, ref []bool) {
	width := len(cur)
	a0 := 0
	a1 := 0
	if !cur[0] {
		a1 = findDiff(cur, 0, false)
	}
	b1 := 0
	if !ref[0] {
		b1 = findDiff(ref, 0, false)
	}
	for {
		b2 := findDiff2(ref, b1, pixel(ref, b1))
		if b2 >= a1 {
			d := b1 - a1
			if d < -3 || d > 3 {
				a2 := findDiff2(cur, a1, pixel(cur, a1))
				bw.put(horizontalCode)
				if a0+a1 == 0 || !pixel(cur, a0) {
					bw.putRun(&whiteCodes, a1-a0)
					bw.putRun(&blackCodes, a2-a1)
				} else {
					bw.putRun(&blackCodes, a1-a0)
					bw.putRun(&whiteCodes, a2-a1)
				}
				a0 = a2
			} else {
				bw.put(verticalCodes[d+3])
				a0 = a1
			}
		} else {
			bw.put(passCode)
			a0 = b2
		}
		if a0 >= width {
			return
		}
		c := pixel(cur, a0)
		a1 = findDiff(cur, a0, c)
		b1 = findDiff(ref, a0, !c)
		b1 = findDiff(ref, b1, c)
	}
}
