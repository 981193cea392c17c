package hydrology

import (
	"fmt"
	"math"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
)

// d8Offsets enumerates the 8 neighbors clockwise from northwest, with
// d8Codes holding the direction code bound to each position.
var (
	d8Offsets = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}}
	d8Codes   = [8]uint8{128, 1, 2, 4, 8, 16, 32, 64}
)

// FlowDirection assigns a D8 code to every interior cell of a window.
// The returned grid is the interior of the input: height and width
// shrink by two, since border cells lack a full 8-neighborhood inside
// the window. Sea cells, NaN elevations, and cells with no downhill
// neighbor keep code 0.
//
// Among downhill neighbors the one with the minimum positive drop
// wins; when drops tie, the earliest in the NW-clockwise scan is kept.
func FlowDirection(elev *grid.Grid, mask *grid.Mask) (*grid.ByteGrid, error) {
	if !mask.CoversGrid(elev) {
		return nil, fmt.Errorf("%w: elevation %dx%d, mask %dx%d",
			grid.ErrShapeMismatch, elev.Rows, elev.Cols, mask.Rows, mask.Cols)
	}
	if elev.Rows < 3 || elev.Cols < 3 {
		return grid.NewByteGrid(0, 0), nil
	}

	out := grid.NewByteGrid(elev.Rows-2, elev.Cols-2)
	for r := 1; r < elev.Rows-1; r++ {
		for c := 1; c < elev.Cols-1; c++ {
			if !mask.Land(r, c) {
				continue
			}
			center := elev.At(r, c)
			if grid.IsNoData(center) {
				continue
			}

			minDiff := math.Inf(1)
			var code uint8
			for i, off := range d8Offsets {
				nr, nc := r+off[0], c+off[1]
				n := elev.At(nr, nc)
				if grid.IsNoData(n) || !mask.Land(nr, nc) {
					continue
				}
				if diff := center - n; diff > 0 && diff < minDiff {
					minDiff = diff
					code = d8Codes[i]
				}
			}
			out.Set(r-1, c-1, code)
		}
	}
	return out, nil
}
