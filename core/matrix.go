package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Channel matrices and DCT blocks are plain *mat.Dense values: a flat
// row-major buffer with explicit (height, width) metadata and bounds-checked
// access. gonum cannot represent a 0x0 dense matrix, so the empty channel is
// represented as nil throughout this package; transforms map nil to nil.

// Point is a (row, col) coordinate inside a DCT block, 0-indexed.
type Point struct {
	Row int
	Col int
}

// In reports whether p lies inside a blockSize x blockSize block.
func (p Point) In(blockSize int) bool {
	return p.Row >= 0 && p.Row < blockSize && p.Col >= 0 && p.Col < blockSize
}

// MatrixFromRows builds a channel matrix from nested rows.
// Empty input yields nil. All rows must have equal length.
func MatrixFromRows(rows [][]float64) *mat.Dense {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil
	}
	h, w := len(rows), len(rows[0])
	m := mat.NewDense(h, w, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}

// RowsFromMatrix is the inverse of MatrixFromRows. nil yields nil.
func RowsFromMatrix(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	h, w := m.Dims()
	rows := make([][]float64, h)
	for i := 0; i < h; i++ {
		rows[i] = make([]float64, w)
		copy(rows[i], m.RawRowView(i))
	}
	return rows
}

// CloneMatrix returns an independent copy of m. nil yields nil.
func CloneMatrix(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}

// clampPixels rounds every cell of m to the nearest integer and clamps it to
// the [0,255] pixel range, in place. The raw inverse transforms never clamp;
// this runs once at the end of an embed.
func clampPixels(m *mat.Dense) {
	if m == nil {
		return
	}
	h, w := m.Dims()
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			v := math.Round(m.At(i, j))
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			m.Set(i, j, v)
		}
	}
}
