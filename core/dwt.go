package core

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrOddDimensions is returned by the wavelet transforms for matrices whose
// height or width is not even. The embedding layer trims channels before
// calling in.
var ErrOddDimensions = errors.New("wavelet transform requires even dimensions")

// DWT2D applies one level of the orthonormal 2D Haar wavelet transform.
// The result is arranged in quadrants:
//
//	LL HL
//	LH HH
//
// with the low-frequency approximation top-left and the horizontal detail
// band (HL, top-right) the usual embedding target.
func DWT2D(m *mat.Dense) (*mat.Dense, error) {
	if m == nil {
		return nil, nil
	}
	h, w := m.Dims()
	if h%2 != 0 || w%2 != 0 {
		return nil, ErrOddDimensions
	}

	// Row transform, then column transform of the row result.
	tmp := mat.NewDense(h, w, nil)
	for i := 0; i < h; i++ {
		tmp.SetRow(i, haar1D(m.RawRowView(i)))
	}
	out := mat.NewDense(h, w, nil)
	col := make([]float64, h)
	for j := 0; j < w; j++ {
		for i := 0; i < h; i++ {
			col[i] = tmp.At(i, j)
		}
		tc := haar1D(col)
		for i := 0; i < h; i++ {
			out.Set(i, j, tc[i])
		}
	}
	return out, nil
}

// IDWT2D inverts DWT2D.
func IDWT2D(m *mat.Dense) (*mat.Dense, error) {
	if m == nil {
		return nil, nil
	}
	h, w := m.Dims()
	if h%2 != 0 || w%2 != 0 {
		return nil, ErrOddDimensions
	}

	// Column inverse first, then row inverse, mirroring DWT2D.
	tmp := mat.NewDense(h, w, nil)
	col := make([]float64, h)
	for j := 0; j < w; j++ {
		for i := 0; i < h; i++ {
			col[i] = m.At(i, j)
		}
		oc := ihaar1D(col)
		for i := 0; i < h; i++ {
			tmp.Set(i, j, oc[i])
		}
	}
	out := mat.NewDense(h, w, nil)
	for i := 0; i < h; i++ {
		out.SetRow(i, ihaar1D(tmp.RawRowView(i)))
	}
	return out, nil
}

// HLBand extracts a copy of the HL (top-right) subband of a transformed
// matrix.
func HLBand(m *mat.Dense) *mat.Dense {
	h, w := m.Dims()
	sub := mat.NewDense(h/2, w/2, nil)
	for i := 0; i < h/2; i++ {
		for j := 0; j < w/2; j++ {
			sub.Set(i, j, m.At(i, w/2+j))
		}
	}
	return sub
}

// SetHLBand writes band back into the HL quadrant of m.
func SetHLBand(m, band *mat.Dense) {
	h, w := m.Dims()
	for i := 0; i < h/2; i++ {
		for j := 0; j < w/2; j++ {
			m.Set(i, w/2+j, band.At(i, j))
		}
	}
}

// haar1D splits data into low-frequency averages (front half) and
// high-frequency details (back half), both scaled by 1/sqrt(2) so the
// transform is orthonormal.
func haar1D(data []float64) []float64 {
	n := len(data)
	half := n / 2
	out := make([]float64, n)
	for i := 0; i < half; i++ {
		out[i] = (data[2*i] + data[2*i+1]) / sqrt2
		out[half+i] = (data[2*i] - data[2*i+1]) / sqrt2
	}
	return out
}

func ihaar1D(data []float64) []float64 {
	n := len(data)
	half := n / 2
	out := make([]float64, n)
	for i := 0; i < half; i++ {
		l, h := data[i], data[half+i]
		out[2*i] = (l + h) / sqrt2
		out[2*i+1] = (l - h) / sqrt2
	}
	return out
}

const sqrt2 = 1.41421356237309504880
