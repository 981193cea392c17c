package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
)

func TestGrid_Sub(t *testing.T) {
	g := grid.NewGrid(4, 5)
	for i := range g.Data {
		g.Data[i] = float64(i)
	}

	sub, err := g.Sub(grid.Window{Row: 1, Col: 2, Height: 2, Width: 3})
	require.NoError(t, err)

	assert.Equal(t, 2, sub.Rows)
	assert.Equal(t, 3, sub.Cols)
	assert.Equal(t, []float64{7, 8, 9, 12, 13, 14}, sub.Data)
}

func TestGrid_Sub_OutOfBounds(t *testing.T) {
	g := grid.NewGrid(3, 3)

	_, err := g.Sub(grid.Window{Row: 2, Col: 2, Height: 2, Width: 2})
	assert.ErrorIs(t, err, grid.ErrWindowBounds)
}

func TestGrid_Add(t *testing.T) {
	a := grid.NewGrid(2, 2)
	b := grid.NewGrid(2, 2)
	copy(a.Data, []float64{1, 2, 3, 4})
	copy(b.Data, []float64{10, 20, 30, 40})

	require.NoError(t, a.Add(b))
	assert.Equal(t, []float64{11, 22, 33, 44}, a.Data)
}

func TestGrid_Add_ShapeMismatch(t *testing.T) {
	a := grid.NewGrid(2, 2)
	b := grid.NewGrid(2, 3)

	assert.ErrorIs(t, a.Add(b), grid.ErrShapeMismatch)
}

func TestMaskFrom_RejectsNonBinary(t *testing.T) {
	b := grid.NewByteGrid(2, 2)
	b.Set(1, 1, 7)

	_, err := grid.MaskFrom(b)
	assert.ErrorIs(t, err, grid.ErrMaskValues)
}

func TestMaskFrom_Valid(t *testing.T) {
	b := grid.NewByteGrid(2, 2)
	b.Set(0, 0, 1)

	m, err := grid.MaskFrom(b)
	require.NoError(t, err)
	assert.True(t, m.Land(0, 0))
	assert.False(t, m.Land(1, 1))
}

func TestWindow_Expand_Interior(t *testing.T) {
	w := grid.Window{Row: 4, Col: 4, Height: 4, Width: 4}

	ex := w.Expand(1, 100, 100)
	assert.Equal(t, grid.Window{Row: 3, Col: 3, Height: 6, Width: 6}, ex)
	assert.Equal(t, grid.Window{Row: 4, Col: 4, Height: 4, Width: 4}, ex.Interior())
}

func TestWindow_Expand_ClampsAtBorder(t *testing.T) {
	w := grid.Window{Row: 0, Col: 0, Height: 4, Width: 4}

	ex := w.Expand(1, 10, 10)
	assert.Equal(t, grid.Window{Row: 0, Col: 0, Height: 5, Width: 5}, ex)

	// The uncomputed ring at the grid border stays uncomputed: the
	// interior starts one cell in.
	assert.Equal(t, grid.Window{Row: 1, Col: 1, Height: 3, Width: 3}, ex.Interior())
}

func TestWindow_Interior_TooThin(t *testing.T) {
	w := grid.Window{Row: 0, Col: 0, Height: 2, Width: 10}

	in := w.Interior()
	assert.Zero(t, in.Height)
	assert.Zero(t, in.Width)
}

func TestTile_RowMajorCoverage(t *testing.T) {
	wins := grid.Tile(5, 7, 2, 3)

	require.Len(t, wins, 9)
	assert.Equal(t, grid.Window{Row: 0, Col: 0, Height: 2, Width: 3}, wins[0])
	assert.Equal(t, grid.Window{Row: 0, Col: 3, Height: 2, Width: 3}, wins[1])
	assert.Equal(t, grid.Window{Row: 0, Col: 6, Height: 2, Width: 1}, wins[2])
	assert.Equal(t, grid.Window{Row: 4, Col: 6, Height: 1, Width: 1}, wins[8])

	// Every cell is covered exactly once.
	seen := make(map[[2]int]int)
	for _, w := range wins {
		for r := w.Row; r < w.Row+w.Height; r++ {
			for c := w.Col; c < w.Col+w.Width; c++ {
				seen[[2]int{r, c}]++
			}
		}
	}
	assert.Len(t, seen, 35)
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestSummarize(t *testing.T) {
	g := grid.NewGrid(2, 2)
	copy(g.Data, []float64{1, 2, 3, 6})

	s := grid.Summarize(g)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 6.0, s.Max)
	assert.Equal(t, 3.0, s.Mean)
}

func TestByteGrid_Float(t *testing.T) {
	b := grid.NewByteGrid(1, 3)
	b.Set(0, 0, 128)
	b.Set(0, 2, 4)

	f := b.Float()
	assert.Equal(t, []float64{128, 0, 4}, f.Data)
}
