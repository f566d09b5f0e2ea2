package core

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/tourze/blind-watermark/converter"
)

var (
	// ErrInvalidPosition is returned when an embedding position lies outside
	// the block. Positions are rejected early, never clamped.
	ErrInvalidPosition = errors.New("embedding position outside block bounds")
	// ErrPayloadTooLarge mirrors the converter limit at the embedder boundary.
	ErrPayloadTooLarge = converter.ErrPayloadTooLarge
)

// multiPointScale reduces the strength at the extra multi-point positions to
// limit visible distortion.
const multiPointScale = 0.8

// DefaultExtraPositions are the multi-point companions used when none are
// configured. They are mid-frequency neighbours of the default position (3,4)
// chosen so they never collide with its symmetric mirrors.
var DefaultExtraPositions = []Point{{Row: 2, Col: 3}, {Row: 2, Col: 4}, {Row: 4, Col: 5}}

// Report describes how an embed call went. Capacity overflow is reported
// here, and on the logger, rather than failing the call: a truncated mark is
// still useful for best-effort robustness.
type Report struct {
	CapacityBits int
	PayloadBits  int // header included
	EmbeddedBits int
	Truncated    bool
}

// Embedder writes a bit stream into the block DCT coefficients of a channel
// matrix. The zero value is not usable; construct with NewEmbedder and adjust
// fields before the first call.
type Embedder struct {
	Engine    *Engine
	BlockSize int
	Position  Point
	Strength  float64

	// Symmetric duplicates each bit at the three mirrored positions of
	// Position within the block, targeting flip/rotation robustness.
	Symmetric bool
	// MultiPoint duplicates each bit at ExtraPositions with reduced strength.
	MultiPoint     bool
	ExtraPositions []Point

	// Wavelet switches the embedding domain to the HL subband of a one-level
	// Haar transform of the channel. Extraction must use the same setting.
	Wavelet bool

	Logger zerolog.Logger
}

// NewEmbedder returns an Embedder with the conventional defaults: 8x8 blocks,
// position (3,4), strength 36.
func NewEmbedder(engine *Engine) *Embedder {
	return &Embedder{
		Engine:    engine,
		BlockSize: 8,
		Position:  Point{Row: 3, Col: 4},
		Strength:  36.0,
		Logger:    zerolog.Nop(),
	}
}

func (em *Embedder) validate() error {
	if em.BlockSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, em.BlockSize)
	}
	if !em.Position.In(em.BlockSize) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d block",
			ErrInvalidPosition, em.Position.Row, em.Position.Col, em.BlockSize, em.BlockSize)
	}
	if em.MultiPoint {
		for _, p := range em.extraPositions() {
			if !p.In(em.BlockSize) {
				return fmt.Errorf("%w: extra (%d,%d) in %dx%d block",
					ErrInvalidPosition, p.Row, p.Col, em.BlockSize, em.BlockSize)
			}
		}
	}
	return nil
}

func (em *Embedder) extraPositions() []Point {
	if len(em.ExtraPositions) > 0 {
		return em.ExtraPositions
	}
	return DefaultExtraPositions
}

// Embed writes payload into ch and returns the reconstructed channel with
// values rounded and clamped to [0,255]. The bit stream is the 16-bit length
// header followed by the payload bits, one bit per full block in row-major
// order. If the channel has fewer blocks than bits the stream is truncated;
// the Report says so and a warning is logged, but the call succeeds.
func (em *Embedder) Embed(ch *mat.Dense, payload []byte) (*mat.Dense, *Report, error) {
	if err := em.validate(); err != nil {
		return nil, nil, err
	}
	payloadBits := converter.BytesToBits(payload)
	header, err := converter.EncodeLength(len(payloadBits))
	if err != nil {
		return nil, nil, fmt.Errorf("embed: %w", err)
	}
	allBits := append(header, payloadBits...)

	if ch == nil {
		return nil, &Report{PayloadBits: len(allBits), Truncated: len(allBits) > 0}, nil
	}

	target := ch
	var wave *mat.Dense
	if em.Wavelet {
		wave, target, err = em.waveletSplit(ch)
		if err != nil {
			return nil, nil, err
		}
	}

	grid, err := em.Engine.BlockDCT(target, em.BlockSize)
	if err != nil {
		return nil, nil, err
	}
	capacity := grid.FullRows() * grid.FullCols()

	report := &Report{
		CapacityBits: capacity,
		PayloadBits:  len(allBits),
		EmbeddedBits: len(allBits),
	}
	if len(allBits) > capacity {
		report.EmbeddedBits = capacity
		report.Truncated = true
		em.Logger.Warn().
			Int("capacity_bits", capacity).
			Int("payload_bits", len(allBits)).
			Msg("watermark truncated: payload exceeds block capacity")
	}

	bitIdx := 0
	for br := 0; br < grid.FullRows() && bitIdx < len(allBits); br++ {
		for bc := 0; bc < grid.FullCols() && bitIdx < len(allBits); bc++ {
			em.writeBit(grid.Block(br, bc), allBits[bitIdx])
			bitIdx++
		}
	}

	rebuilt := em.Engine.BlockIDCT(grid)
	if em.Wavelet {
		rebuilt, err = em.waveletMerge(ch, wave, rebuilt)
		if err != nil {
			return nil, nil, err
		}
	}
	clampPixels(rebuilt)
	return rebuilt, report, nil
}

// writeBit hard-overwrites the chosen coefficients with a signed strength.
// Robustness comes from the magnitude, not from preserving the original
// value.
func (em *Embedder) writeBit(block *mat.Dense, bit bool) {
	v := em.Strength
	if !bit {
		v = -em.Strength
	}
	block.Set(em.Position.Row, em.Position.Col, v)
	if em.Symmetric {
		n := em.BlockSize
		r, c := em.Position.Row, em.Position.Col
		block.Set(r, n-1-c, v)     // horizontal-flip mirror
		block.Set(n-1-r, c, v)     // vertical-flip mirror
		block.Set(n-1-r, n-1-c, v) // 180-degree mirror
	}
	if em.MultiPoint {
		for _, p := range em.extraPositions() {
			block.Set(p.Row, p.Col, v*multiPointScale)
		}
	}
}

// waveletSplit transforms the even-trimmed region of ch and returns the full
// wavelet plane plus its HL band as the embedding target.
func (em *Embedder) waveletSplit(ch *mat.Dense) (wave, target *mat.Dense, err error) {
	region := evenRegion(ch)
	wave, err = DWT2D(region)
	if err != nil {
		return nil, nil, err
	}
	if wave == nil {
		return nil, nil, nil
	}
	return wave, HLBand(wave), nil
}

// waveletMerge writes the embedded HL band back and inverse-transforms,
// preserving any trailing odd row/column of the original channel.
func (em *Embedder) waveletMerge(orig, wave, band *mat.Dense) (*mat.Dense, error) {
	if wave == nil {
		return CloneMatrix(orig), nil
	}
	SetHLBand(wave, band)
	region, err := IDWT2D(wave)
	if err != nil {
		return nil, err
	}
	out := CloneMatrix(orig)
	rh, rw := region.Dims()
	for i := 0; i < rh; i++ {
		for j := 0; j < rw; j++ {
			out.Set(i, j, region.At(i, j))
		}
	}
	return out, nil
}

// evenRegion returns the largest top-left submatrix of ch with even
// dimensions, or nil if none exists.
func evenRegion(ch *mat.Dense) *mat.Dense {
	h, w := ch.Dims()
	eh, ew := h-h%2, w-w%2
	if eh == 0 || ew == 0 {
		return nil
	}
	region := mat.NewDense(eh, ew, nil)
	for i := 0; i < eh; i++ {
		for j := 0; j < ew; j++ {
			region.Set(i, j, ch.At(i, j))
		}
	}
	return region
}
