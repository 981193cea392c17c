package grid

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds the per-band statistics reported for each processed
// file and for the accumulated total.
type Summary struct {
	Min  float64
	Max  float64
	Mean float64
}

func (s Summary) String() string {
	return fmt.Sprintf("min=%g max=%g mean=%g", s.Min, s.Max, s.Mean)
}

// Summarize computes min/max/mean over all cells. The zero Summary is
// returned for an empty grid. Cells are assumed NaN-free; cleansing
// happens before statistics are taken.
func Summarize(g *Grid) Summary {
	if len(g.Data) == 0 {
		return Summary{}
	}
	return Summary{
		Min:  floats.Min(g.Data),
		Max:  floats.Max(g.Data),
		Mean: stat.Mean(g.Data, nil),
	}
}
