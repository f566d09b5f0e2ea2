package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/tourze/blind-watermark/converter"
)

// ErrNoWatermark is returned when extraction cannot frame a payload: the
// channel has too few blocks for the length header, or the decoded length
// could not possibly fit the channel. This is the expected outcome on an
// unwatermarked or heavily corrupted image and is distinct from a
// legitimately empty payload, which extracts as empty bytes with a nil
// error.
var ErrNoWatermark = errors.New("no watermark found")

// Extractor recovers the bit stream an Embedder wrote. Its parameters must
// match the embedding parameters; extraction is blind and has no way to
// verify them.
type Extractor struct {
	Engine    *Engine
	BlockSize int
	Position  Point

	Symmetric      bool
	MultiPoint     bool
	ExtraPositions []Point

	Wavelet bool

	// Reference is a snapshot of the channel taken right after embedding,
	// borrowed read-only for geometric transform detection. Correction only
	// runs when GeometricCorrection is set and a reference is supplied.
	Reference           *mat.Dense
	GeometricCorrection bool

	Logger zerolog.Logger
}

// NewExtractor returns an Extractor with the same defaults as NewEmbedder.
func NewExtractor(engine *Engine) *Extractor {
	return &Extractor{
		Engine:    engine,
		BlockSize: 8,
		Position:  Point{Row: 3, Col: 4},
		Logger:    zerolog.Nop(),
	}
}

func (ex *Extractor) validate() error {
	if ex.BlockSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, ex.BlockSize)
	}
	if !ex.Position.In(ex.BlockSize) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d block",
			ErrInvalidPosition, ex.Position.Row, ex.Position.Col, ex.BlockSize, ex.BlockSize)
	}
	if ex.MultiPoint {
		for _, p := range ex.extraPositions() {
			if !p.In(ex.BlockSize) {
				return fmt.Errorf("%w: extra (%d,%d) in %dx%d block",
					ErrInvalidPosition, p.Row, p.Col, ex.BlockSize, ex.BlockSize)
			}
		}
	}
	return nil
}

func (ex *Extractor) extraPositions() []Point {
	if len(ex.ExtraPositions) > 0 {
		return ex.ExtraPositions
	}
	return DefaultExtraPositions
}

// Extract recovers the payload bytes from ch. The length header is read
// first and validated against the channel's capacity before the payload bits
// are framed; header bits that decode to an impossible length yield
// ErrNoWatermark rather than a bogus payload.
func (ex *Extractor) Extract(ch *mat.Dense) ([]byte, error) {
	if err := ex.validate(); err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrNoWatermark
	}

	if ex.GeometricCorrection && ex.Reference != nil {
		ch = ex.correct(ch)
	}

	target := ch
	if ex.Wavelet {
		region := evenRegion(ch)
		wave, err := DWT2D(region)
		if err != nil {
			return nil, err
		}
		if wave == nil {
			return nil, ErrNoWatermark
		}
		target = HLBand(wave)
	}

	grid, err := ex.Engine.BlockDCT(target, ex.BlockSize)
	if err != nil {
		return nil, err
	}
	capacity := grid.FullRows() * grid.FullCols()
	if capacity < converter.HeaderBits {
		return nil, fmt.Errorf("%w: %d blocks cannot hold the length header", ErrNoWatermark, capacity)
	}

	header := ex.readBits(grid, converter.HeaderBits)
	bitLength := converter.DecodeLength(header)
	if bitLength == 0 {
		// A legitimately empty payload, not a failure.
		return []byte{}, nil
	}
	if converter.HeaderBits+bitLength > capacity {
		// Noise guard: a real mark never claims more bits than the channel
		// it was embedded in could carry.
		return nil, fmt.Errorf("%w: decoded length %d exceeds capacity %d",
			ErrNoWatermark, bitLength, capacity)
	}

	// Never assume the first pass was sufficient: re-read the full stream.
	all := ex.readBits(grid, converter.HeaderBits+bitLength)
	return converter.BitsToBytes(all[converter.HeaderBits:]), nil
}

// readBits walks full blocks in row-major order reading up to n bits.
func (ex *Extractor) readBits(grid *BlockGrid, n int) []bool {
	bits := make([]bool, 0, n)
	for br := 0; br < grid.FullRows() && len(bits) < n; br++ {
		for bc := 0; bc < grid.FullCols() && len(bits) < n; bc++ {
			bits = append(bits, ex.readBit(grid.Block(br, bc)))
		}
	}
	return bits
}

// readBit decides a block's bit from the sign of the embedded coefficients.
// With redundant positions enabled the votes are tallied and the main
// position breaks ties (it always contributes one vote itself).
func (ex *Extractor) readBit(block *mat.Dense) bool {
	main := block.At(ex.Position.Row, ex.Position.Col) > 0
	if !ex.Symmetric && !ex.MultiPoint {
		return main
	}

	ones, total := 0, 1
	if main {
		ones = 1
	}
	vote := func(r, c int) {
		total++
		if block.At(r, c) > 0 {
			ones++
		}
	}
	if ex.Symmetric {
		n := ex.BlockSize
		r, c := ex.Position.Row, ex.Position.Col
		vote(r, n-1-c)
		vote(n-1-r, c)
		vote(n-1-r, n-1-c)
	}
	if ex.MultiPoint {
		for _, p := range ex.extraPositions() {
			vote(p.Row, p.Col)
		}
	}
	if 2*ones == total {
		return main
	}
	return 2*ones > total
}

// correct detects and undoes a geometric transform against the reference.
// Staging rotation detection before flip detection is unreliable on square
// images (a flipped candidate matches no rotation hypothesis), so all eight
// orientation hypotheses compete jointly on the same center-window
// difference the standalone detectors use; the winner is inverted via
// CorrectGeometricTransform.
func (ex *Extractor) correct(ch *mat.Dense) *mat.Dense {
	ref := ex.Reference
	rh, rw := ref.Dims()
	chH, chW := ch.Dims()

	bestDiff := math.Inf(1)
	var bestAngle int
	var bestH, bestV bool
	for _, angle := range [...]int{0, 90, 180, 270} {
		if angle == 0 || angle == 180 {
			if rh != chH || rw != chW {
				continue
			}
		} else {
			if rh != chW || rw != chH {
				continue
			}
		}
		unrotated := Rotate(ch, (360-angle)%360)
		for _, hFlip := range [...]bool{false, true} {
			for _, vFlip := range [...]bool{false, true} {
				cand := unrotated
				if hFlip {
					cand = FlipHorizontal(cand)
				}
				if vFlip {
					cand = FlipVertical(cand)
				}
				if d := windowDiff(ref, cand); d < bestDiff {
					bestDiff = d
					bestAngle, bestH, bestV = angle, hFlip, vFlip
				}
			}
		}
	}
	if bestAngle != 0 || bestH || bestV {
		ex.Logger.Debug().
			Int("rotation", bestAngle).
			Bool("hflip", bestH).
			Bool("vflip", bestV).
			Msg("geometric transform detected, correcting")
	}
	return CorrectGeometricTransform(ch, bestH, bestV, bestAngle)
}
