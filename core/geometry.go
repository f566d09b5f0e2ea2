package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Geometric transform detection compares a candidate channel against a
// reference channel captured right after embedding. Detection samples a small
// square window near the image center rather than the full plane; the window
// is large enough to discriminate orientations on any natural image while
// keeping detection cheap.

// detectWindow is the maximum side length of the sampling window.
const detectWindow = 32

// FlipHorizontal mirrors the channel along its vertical axis.
func FlipHorizontal(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	h, w := m.Dims()
	out := mat.NewDense(h, w, nil)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			out.Set(i, j, m.At(i, w-1-j))
		}
	}
	return out
}

// FlipVertical mirrors the channel along its horizontal axis.
func FlipVertical(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	h, w := m.Dims()
	out := mat.NewDense(h, w, nil)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			out.Set(i, j, m.At(h-1-i, j))
		}
	}
	return out
}

// Rotate rotates the channel clockwise by angle degrees. Supported angles are
// 90, 180 and 270; any other angle returns the input unchanged. The no-op is
// a documented policy, not an error: callers feed it the output of
// DetectRotation, which includes 0.
func Rotate(m *mat.Dense, angle int) *mat.Dense {
	if m == nil {
		return nil
	}
	h, w := m.Dims()
	switch angle {
	case 90:
		out := mat.NewDense(w, h, nil)
		for i := 0; i < w; i++ {
			for j := 0; j < h; j++ {
				out.Set(i, j, m.At(h-1-j, i))
			}
		}
		return out
	case 180:
		out := mat.NewDense(h, w, nil)
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				out.Set(i, j, m.At(h-1-i, w-1-j))
			}
		}
		return out
	case 270:
		out := mat.NewDense(w, h, nil)
		for i := 0; i < w; i++ {
			for j := 0; j < h; j++ {
				out.Set(i, j, m.At(j, w-1-i))
			}
		}
		return out
	default:
		return m
	}
}

// windowDiff sums the absolute per-pixel difference between a and b over a
// centered square window. Both matrices must share dimensions.
func windowDiff(a, b *mat.Dense) float64 {
	h, w := a.Dims()
	n := detectWindow
	if h < n {
		n = h
	}
	if w < n {
		n = w
	}
	r0, c0 := (h-n)/2, (w-n)/2
	sum := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sum += math.Abs(a.At(r0+i, c0+j) - b.At(r0+i, c0+j))
		}
	}
	return sum
}

// mirroredWindowDiff is windowDiff with b read mirrored along the given axis.
func mirroredWindowDiff(a, b *mat.Dense, horizontal bool) float64 {
	h, w := a.Dims()
	n := detectWindow
	if h < n {
		n = h
	}
	if w < n {
		n = w
	}
	r0, c0 := (h-n)/2, (w-n)/2
	sum := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var bv float64
			if horizontal {
				bv = b.At(r0+i, w-1-(c0+j))
			} else {
				bv = b.At(h-1-(r0+i), c0+j)
			}
			sum += math.Abs(a.At(r0+i, c0+j) - bv)
		}
	}
	return sum
}

// DetectHorizontalFlip reports whether candidate looks like reference
// mirrored along X. A flip is declared only when the mirrored comparison is
// strictly closer than the straight one; identical channels report false.
func DetectHorizontalFlip(reference, candidate *mat.Dense) bool {
	if reference == nil || candidate == nil {
		return false
	}
	rh, rw := reference.Dims()
	ch, cw := candidate.Dims()
	if rh != ch || rw != cw {
		return false
	}
	straight := windowDiff(reference, candidate)
	mirrored := mirroredWindowDiff(reference, candidate, true)
	return mirrored < straight
}

// DetectVerticalFlip is the Y-axis counterpart of DetectHorizontalFlip.
func DetectVerticalFlip(reference, candidate *mat.Dense) bool {
	if reference == nil || candidate == nil {
		return false
	}
	rh, rw := reference.Dims()
	ch, cw := candidate.Dims()
	if rh != ch || rw != cw {
		return false
	}
	straight := windowDiff(reference, candidate)
	mirrored := mirroredWindowDiff(reference, candidate, false)
	return mirrored < straight
}

// DetectRotation returns the clockwise angle (0, 90, 180 or 270) the
// candidate appears to have been rotated by, relative to the reference.
// Only dimensionally possible angles compete: 90/270 require transposed
// dimensions, 0/180 identical ones. If no orientation is possible the angle
// cannot be determined and 0 is returned.
func DetectRotation(reference, candidate *mat.Dense) int {
	if reference == nil || candidate == nil {
		return 0
	}
	rh, rw := reference.Dims()
	ch, cw := candidate.Dims()

	best, bestDiff := 0, math.Inf(1)
	for _, angle := range [...]int{0, 90, 180, 270} {
		if angle == 0 || angle == 180 {
			if rh != ch || rw != cw {
				continue
			}
		} else {
			if rh != cw || rw != ch {
				continue
			}
		}
		undone := Rotate(candidate, (360-angle)%360)
		if d := windowDiff(reference, undone); d < bestDiff {
			best, bestDiff = angle, d
		}
	}
	return best
}

// CorrectGeometricTransform undoes a rotation-then-flip attack: rotation is
// reverted first (by rotating (360-angle) mod 360), then the horizontal flip,
// then the vertical flip. The order inverts the assumed attack composition.
func CorrectGeometricTransform(ch *mat.Dense, hFlipped, vFlipped bool, angle int) *mat.Dense {
	out := Rotate(ch, (360-angle)%360)
	if hFlipped {
		out = FlipHorizontal(out)
	}
	if vFlipped {
		out = FlipVertical(out)
	}
	return out
}
