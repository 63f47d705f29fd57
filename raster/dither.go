/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package raster

// DitherMatrix is a 16x16 threshold matrix. A pixel is set when its
// 8-bit value exceeds the threshold at its (x mod 16, y mod 16) cell.
type DitherMatrix [16][16]uint8

var (
	// PhotoDither is a dispersed-dot (Bayer) matrix. It preserves tone
	// gradients, so it is used for photographic content.
	PhotoDither = bayerMatrix()

	// GeneralDither is a 45-degree clustered-dot matrix. Clustered dots
	// survive marking-engine dot gain better, which keeps text and line
	// art crisp.
	GeneralDither = clusteredMatrix()
)

func bayerMatrix() DitherMatrix {
	var m DitherMatrix
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := 0
			xc := x ^ y
			for bit := 3; bit >= 0; bit-- {
				v = v<<2 | ((y>>bit)&1)<<1 | (xc>>bit)&1
			}
			m[y][x] = uint8(v)
		}
	}
	return m
}

// Classic 8x8 clustered-dot spot function ordering.
var clustered8 = [8][8]uint8{
	{24, 10, 12, 26, 35, 47, 49, 37},
	{8, 0, 2, 14, 45, 59, 61, 51},
	{22, 6, 4, 16, 43, 57, 63, 53},
	{30, 20, 18, 28, 33, 41, 55, 39},
	{34, 46, 48, 36, 25, 11, 13, 27},
	{44, 58, 60, 50, 9, 1, 3, 15},
	{42, 56, 62, 52, 23, 7, 5, 17},
	{32, 40, 54, 38, 31, 21, 19, 29},
}

func clusteredMatrix() DitherMatrix {
	var m DitherMatrix
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			m[y][x] = clustered8[y%8][x%8] * 4
		}
	}
	return m
}

// DitherLine converts one 8-bit grayscale scanline to packed 1-bit
// output, darkest-is-set, using row y of the matrix. The returned slice
// holds (len(line)+7)/8 bytes.
func DitherLine(m *DitherMatrix, y int, line []byte) []byte {
	out := make([]byte, (len(line)+7)/8)
	row := &m[y&15]
	for x, v := range line {
		// Gray value below the threshold means ink.
		if v < row[x&15] {
			out[x>>3] |= 0x80 >> (x & 7)
		}
	}
	return out
}
