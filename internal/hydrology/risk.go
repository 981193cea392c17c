package hydrology

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
)

// Risk composition weights. Runoff dominates: standing water arrives
// where runoff concentrates, flow direction only modulates it.
const (
	runoffWeight   = 0.7
	flowWeight     = 0.3
	smoothingSigma = 2.0
)

// Normalize rescales a grid to [0,1] by min-max. A constant-valued
// grid maps to all zeros; epsilon keeps the division defined.
func Normalize(g *grid.Grid) *grid.Grid {
	out := grid.NewGrid(g.Rows, g.Cols)
	if len(g.Data) == 0 {
		return out
	}
	lo := floats.Min(g.Data)
	span := floats.Max(g.Data) - lo + epsilon
	for i, v := range g.Data {
		out.Data[i] = (v - lo) / span
	}
	return out
}

// ComposeRisk combines a flow-direction grid (as float codes) and a
// runoff grid into a smoothed scalar risk score. Both inputs are
// min-max normalized independently, mixed 0.7 runoff to 0.3 flow
// direction, then blurred with an isotropic Gaussian of σ=2 cells to
// suppress pixel-level noise. No masking happens here; sea cells keep
// a numeric score and display masking is the caller's concern.
func ComposeRisk(flowDir, runoff *grid.Grid) (*grid.Grid, error) {
	if !flowDir.SameShape(runoff) {
		return nil, fmt.Errorf("%w: flow %dx%d, runoff %dx%d",
			grid.ErrShapeMismatch, flowDir.Rows, flowDir.Cols, runoff.Rows, runoff.Cols)
	}

	rn := Normalize(runoff)
	fn := Normalize(flowDir)
	risk := grid.NewGrid(runoff.Rows, runoff.Cols)
	for i := range risk.Data {
		risk.Data[i] = runoffWeight*rn.Data[i] + flowWeight*fn.Data[i]
	}
	return gaussianBlur(risk, smoothingSigma), nil
}

// gaussianKernel builds a unit-sum 1D Gaussian truncated at 3σ.
func gaussianKernel(sigma float64) []float64 {
	radius := int(3*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	for i := range k {
		d := float64(i - radius)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// gaussianBlur applies a separable Gaussian filter. Near the edges the
// kernel is renormalized over the in-bounds taps, so a constant field
// stays constant.
func gaussianBlur(g *grid.Grid, sigma float64) *grid.Grid {
	k := gaussianKernel(sigma)
	radius := len(k) / 2

	// Horizontal pass.
	tmp := grid.NewGrid(g.Rows, g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			var sum, weight float64
			for i, w := range k {
				cc := c + i - radius
				if cc < 0 || cc >= g.Cols {
					continue
				}
				sum += w * g.At(r, cc)
				weight += w
			}
			tmp.Set(r, c, sum/weight)
		}
	}

	// Vertical pass.
	out := grid.NewGrid(g.Rows, g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			var sum, weight float64
			for i, w := range k {
				rr := r + i - radius
				if rr < 0 || rr >= g.Rows {
					continue
				}
				sum += w * tmp.At(rr, c)
				weight += w
			}
			out.Set(r, c, sum/weight)
		}
	}
	return out
}
