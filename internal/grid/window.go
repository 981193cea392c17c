package grid

import "fmt"

// Window identifies a rectangular sub-region of a larger grid.
type Window struct {
	Row, Col      int // offsets of the top-left cell
	Height, Width int
}

func (w Window) String() string {
	return fmt.Sprintf("window(%d,%d %dx%d)", w.Row, w.Col, w.Height, w.Width)
}

// fits reports whether w lies entirely inside a rows×cols grid.
func (w Window) fits(rows, cols int) bool {
	return w.Row >= 0 && w.Col >= 0 && w.Height >= 0 && w.Width >= 0 &&
		w.Row+w.Height <= rows && w.Col+w.Width <= cols
}

// Expand grows w by margin cells on every side, clamped to the bounds
// of a rows×cols grid. Neighbor-dependent computations run on the
// expanded window so the full 8-neighborhood is available for every
// cell of the original one; at the grid border no halo exists and the
// outermost ring stays uncomputed.
func (w Window) Expand(margin, rows, cols int) Window {
	r0 := max(w.Row-margin, 0)
	c0 := max(w.Col-margin, 0)
	r1 := min(w.Row+w.Height+margin, rows)
	c1 := min(w.Col+w.Width+margin, cols)
	return Window{Row: r0, Col: c0, Height: r1 - r0, Width: c1 - c0}
}

// Interior returns the window one cell inside w, the region a
// flow-direction solve over w actually produces. Degenerates to a
// zero-size window when w is thinner than three cells.
func (w Window) Interior() Window {
	if w.Height < 3 || w.Width < 3 {
		return Window{Row: w.Row + 1, Col: w.Col + 1}
	}
	return Window{Row: w.Row + 1, Col: w.Col + 1, Height: w.Height - 2, Width: w.Width - 2}
}

// Tile partitions a rows×cols grid into row-major blocks of at most
// blockH×blockW cells. Blocks at the bottom and right edges may be
// smaller. The ordering is part of the contract: callers iterate
// blocks by row-major block index.
func Tile(rows, cols, blockH, blockW int) []Window {
	if rows <= 0 || cols <= 0 || blockH <= 0 || blockW <= 0 {
		return nil
	}
	var wins []Window
	for r := 0; r < rows; r += blockH {
		h := min(blockH, rows-r)
		for c := 0; c < cols; c += blockW {
			wins = append(wins, Window{Row: r, Col: c, Height: h, Width: min(blockW, cols-c)})
		}
	}
	return wins
}
