// Package grid provides the in-memory raster types shared by the
// hydrology models: float64 cell grids, uint8 cell grids, land/sea
// masks, and rectangular windows over them.
//
// Cells are stored row-major in a flat backing slice. In memory the
// no-data sentinel is NaN; file-level no-data values are translated at
// the adapter boundary. All operations that combine two grids require
// them to be co-registered (same shape); the callers are responsible
// for alignment, which happens before data enters this package.
package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrShapeMismatch indicates two grids expected to be co-registered
	// differ in shape. Operations that detect it must not proceed.
	ErrShapeMismatch = errors.New("grid: shape mismatch")
	// ErrMaskValues indicates a mask contains values other than 0 and 1.
	ErrMaskValues = errors.New("grid: mask values must be 0 or 1")
	// ErrWindowBounds indicates a window does not fit inside its grid.
	ErrWindowBounds = errors.New("grid: window out of bounds")
)

// Grid is a dense 2D raster of float64 cells.
type Grid struct {
	Rows, Cols int
	Data       []float64 // row-major, length Rows*Cols
}

// NewGrid allocates a zero-filled grid.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the cell value at (r, c).
func (g *Grid) At(r, c int) float64 { return g.Data[r*g.Cols+c] }

// Set stores v at (r, c).
func (g *Grid) Set(r, c int, v float64) { g.Data[r*g.Cols+c] = v }

// SameShape reports whether g and o have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Rows, g.Cols)
	copy(out.Data, g.Data)
	return out
}

// Sub extracts the cells covered by w into a new grid.
func (g *Grid) Sub(w Window) (*Grid, error) {
	if !w.fits(g.Rows, g.Cols) {
		return nil, fmt.Errorf("%w: %v in %dx%d", ErrWindowBounds, w, g.Rows, g.Cols)
	}
	out := NewGrid(w.Height, w.Width)
	for r := 0; r < w.Height; r++ {
		src := (w.Row+r)*g.Cols + w.Col
		copy(out.Data[r*w.Width:(r+1)*w.Width], g.Data[src:src+w.Width])
	}
	return out, nil
}

// Add accumulates o into g elementwise.
func (g *Grid) Add(o *Grid) error {
	if !g.SameShape(o) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, g.Rows, g.Cols, o.Rows, o.Cols)
	}
	for i, v := range o.Data {
		g.Data[i] += v
	}
	return nil
}

// ByteGrid is a dense 2D raster of uint8 cells, used for masks and
// D8 direction codes.
type ByteGrid struct {
	Rows, Cols int
	Data       []uint8 // row-major, length Rows*Cols
}

// NewByteGrid allocates a zero-filled byte grid.
func NewByteGrid(rows, cols int) *ByteGrid {
	return &ByteGrid{Rows: rows, Cols: cols, Data: make([]uint8, rows*cols)}
}

// At returns the cell value at (r, c).
func (b *ByteGrid) At(r, c int) uint8 { return b.Data[r*b.Cols+c] }

// Set stores v at (r, c).
func (b *ByteGrid) Set(r, c int, v uint8) { b.Data[r*b.Cols+c] = v }

// Sub extracts the cells covered by w into a new byte grid.
func (b *ByteGrid) Sub(w Window) (*ByteGrid, error) {
	if !w.fits(b.Rows, b.Cols) {
		return nil, fmt.Errorf("%w: %v in %dx%d", ErrWindowBounds, w, b.Rows, b.Cols)
	}
	out := NewByteGrid(w.Height, w.Width)
	for r := 0; r < w.Height; r++ {
		src := (w.Row+r)*b.Cols + w.Col
		copy(out.Data[r*w.Width:(r+1)*w.Width], b.Data[src:src+w.Width])
	}
	return out, nil
}

// Float converts b into a float64 grid. Flow-direction codes pass
// through this before entering the risk composition, which normalizes
// arbitrary numeric grids.
func (b *ByteGrid) Float() *Grid {
	out := NewGrid(b.Rows, b.Cols)
	for i, v := range b.Data {
		out.Data[i] = float64(v)
	}
	return out
}

// Mask is a land/sea grid: 0 marks sea or invalid cells, 1 marks land.
// A mask is only meaningful for grids it is co-registered with.
type Mask struct {
	ByteGrid
}

// NewMask allocates an all-sea mask.
func NewMask(rows, cols int) *Mask {
	return &Mask{ByteGrid: *NewByteGrid(rows, cols)}
}

// MaskFrom wraps a byte grid as a mask after checking that every cell
// is 0 or 1.
func MaskFrom(b *ByteGrid) (*Mask, error) {
	for _, v := range b.Data {
		if v > 1 {
			return nil, ErrMaskValues
		}
	}
	return &Mask{ByteGrid: *b}, nil
}

// Land reports whether the cell at (r, c) is land.
func (m *Mask) Land(r, c int) bool { return m.At(r, c) == 1 }

// CoversGrid reports whether m has the same shape as g.
func (m *Mask) CoversGrid(g *Grid) bool {
	return m.Rows == g.Rows && m.Cols == g.Cols
}

// SubMask extracts the mask cells covered by w.
func (m *Mask) SubMask(w Window) (*Mask, error) {
	b, err := m.ByteGrid.Sub(w)
	if err != nil {
		return nil, err
	}
	return &Mask{ByteGrid: *b}, nil
}

// IsNoData reports whether v is the in-memory no-data sentinel.
func IsNoData(v float64) bool { return math.IsNaN(v) }
