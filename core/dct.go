package core

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidBlockSize is returned for block sizes below 1.
var ErrInvalidBlockSize = errors.New("block size must be >= 1")

// DCTDirect computes the orthonormal 2D DCT-II of an MxN matrix by direct
// double summation, recomputing every cosine term. It is the reference
// implementation the cached Engine is tested against.
//
//	F(u,v) = (2/sqrt(M*N)) * C(u) * C(v) *
//	         sum_i sum_j f(i,j) * cos((2i+1)u*pi/2M) * cos((2j+1)v*pi/2N)
//
// with C(0) = 1/sqrt(2), C(k>0) = 1.
func DCTDirect(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	h, w := m.Dims()
	scale := 2.0 / math.Sqrt(float64(h)*float64(w))
	out := mat.NewDense(h, w, nil)
	for u := 0; u < h; u++ {
		for v := 0; v < w; v++ {
			sum := 0.0
			for i := 0; i < h; i++ {
				for j := 0; j < w; j++ {
					sum += m.At(i, j) *
						math.Cos((2*float64(i)+1)*float64(u)*math.Pi/(2*float64(h))) *
						math.Cos((2*float64(j)+1)*float64(v)*math.Pi/(2*float64(w)))
				}
			}
			out.Set(u, v, scale*c(u)*c(v)*sum)
		}
	}
	return out
}

// IDCTDirect is the direct-summation inverse of DCTDirect.
func IDCTDirect(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	h, w := m.Dims()
	scale := 2.0 / math.Sqrt(float64(h)*float64(w))
	out := mat.NewDense(h, w, nil)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			sum := 0.0
			for u := 0; u < h; u++ {
				for v := 0; v < w; v++ {
					sum += c(u) * c(v) * m.At(u, v) *
						math.Cos((2*float64(i)+1)*float64(u)*math.Pi/(2*float64(h))) *
						math.Cos((2*float64(j)+1)*float64(v)*math.Pi/(2*float64(w)))
				}
			}
			out.Set(i, j, scale*sum)
		}
	}
	return out
}

func c(k int) float64 {
	if k == 0 {
		return 1.0 / math.Sqrt2
	}
	return 1.0
}

// Engine is the cached-mode DCT engine. It memoizes cosine tables per
// transform dimension so repeated block transforms of the same size reuse
// them. The table map is append-only and guarded by a mutex; population is
// idempotent, so an Engine is safe to share across goroutines.
type Engine struct {
	mu     sync.Mutex
	tables map[int][][]float64
}

// NewEngine returns an Engine with an empty cosine cache.
func NewEngine() *Engine {
	return &Engine{tables: make(map[int][][]float64)}
}

// table returns the cosine table for dimension n, computing it on first use.
// table[k][f] = cos((2k+1) * f * pi / (2n)).
func (e *Engine) table(n int) [][]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tables[n]; ok {
		return t
	}
	t := make([][]float64, n)
	for k := 0; k < n; k++ {
		t[k] = make([]float64, n)
		for f := 0; f < n; f++ {
			t[k][f] = math.Cos((2*float64(k) + 1) * float64(f) * math.Pi / (2 * float64(n)))
		}
	}
	e.tables[n] = t
	return t
}

// Forward computes the same transform as DCTDirect using cached cosines.
func (e *Engine) Forward(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	h, w := m.Dims()
	rows, cols := e.table(h), e.table(w)
	scale := 2.0 / math.Sqrt(float64(h)*float64(w))
	out := mat.NewDense(h, w, nil)
	for u := 0; u < h; u++ {
		for v := 0; v < w; v++ {
			sum := 0.0
			for i := 0; i < h; i++ {
				ci := rows[i][u]
				for j := 0; j < w; j++ {
					sum += m.At(i, j) * ci * cols[j][v]
				}
			}
			out.Set(u, v, scale*c(u)*c(v)*sum)
		}
	}
	return out
}

// Inverse computes the same transform as IDCTDirect using cached cosines.
// Output values are raw floats; rounding and pixel clamping are the
// embedder's job.
func (e *Engine) Inverse(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	h, w := m.Dims()
	rows, cols := e.table(h), e.table(w)
	scale := 2.0 / math.Sqrt(float64(h)*float64(w))
	out := mat.NewDense(h, w, nil)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			sum := 0.0
			for u := 0; u < h; u++ {
				cu := c(u) * rows[i][u]
				for v := 0; v < w; v++ {
					sum += cu * c(v) * m.At(u, v) * cols[j][v]
				}
			}
			out.Set(i, j, scale*sum)
		}
	}
	return out
}

// BlockGrid holds the block-tiled DCT of a channel: the coefficient blocks in
// row-major tile order plus the original channel geometry needed to undo the
// tiling.
type BlockGrid struct {
	Blocks    []*mat.Dense
	Rows      int // tile rows, ceil(Height/BlockSize)
	Cols      int // tile cols, ceil(Width/BlockSize)
	Height    int // original channel height
	Width     int // original channel width
	BlockSize int
}

// Block returns the coefficient block at tile (r, c).
func (g *BlockGrid) Block(r, c int) *mat.Dense {
	return g.Blocks[r*g.Cols+c]
}

// FullRows and FullCols count the tiles that lie entirely inside the channel.
// Partial edge tiles are zero-padded for the transform but carry no payload
// bits, so the embedding capacity is FullRows()*FullCols().
func (g *BlockGrid) FullRows() int { return g.Height / g.BlockSize }

// FullCols is the column counterpart of FullRows.
func (g *BlockGrid) FullCols() int { return g.Width / g.BlockSize }

// BlockDCT partitions ch into blockSize x blockSize tiles, zero-padding any
// partial tile at the bottom/right edge, and forward-transforms each tile.
func (e *Engine) BlockDCT(ch *mat.Dense, blockSize int) (*BlockGrid, error) {
	if blockSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}
	if ch == nil {
		return &BlockGrid{BlockSize: blockSize}, nil
	}
	h, w := ch.Dims()
	rows := (h + blockSize - 1) / blockSize
	cols := (w + blockSize - 1) / blockSize
	g := &BlockGrid{
		Blocks:    make([]*mat.Dense, rows*cols),
		Rows:      rows,
		Cols:      cols,
		Height:    h,
		Width:     w,
		BlockSize: blockSize,
	}
	for br := 0; br < rows; br++ {
		for bc := 0; bc < cols; bc++ {
			tile := mat.NewDense(blockSize, blockSize, nil)
			for i := 0; i < blockSize; i++ {
				for j := 0; j < blockSize; j++ {
					y, x := br*blockSize+i, bc*blockSize+j
					if y < h && x < w {
						tile.Set(i, j, ch.At(y, x))
					}
				}
			}
			g.Blocks[br*cols+bc] = e.Forward(tile)
		}
	}
	return g, nil
}

// BlockIDCT inverse-transforms every tile of g and reassembles the channel,
// truncating the zero padding of partial edge tiles. Values are not rounded
// or clamped.
func (e *Engine) BlockIDCT(g *BlockGrid) *mat.Dense {
	if g == nil || len(g.Blocks) == 0 {
		return nil
	}
	out := mat.NewDense(g.Height, g.Width, nil)
	for br := 0; br < g.Rows; br++ {
		for bc := 0; bc < g.Cols; bc++ {
			tile := e.Inverse(g.Block(br, bc))
			for i := 0; i < g.BlockSize; i++ {
				for j := 0; j < g.BlockSize; j++ {
					y, x := br*g.BlockSize+i, bc*g.BlockSize+j
					if y < g.Height && x < g.Width {
						out.Set(y, x, tile.At(i, j))
					}
				}
			}
		}
	}
	return out
}
