// Package hydrology implements the cell-wise models of the engine:
// SCS Curve-Number surface runoff, D8 flow direction, and the weighted
// risk composition.
//
// # SCS-CN runoff
//
// The Soil Conservation Service Curve-Number method estimates direct
// runoff from a rainfall depth P and an empirical curve number CN
// describing land cover and soil. Potential retention is
//
//	S = 1000/CN − 10
//
// and runoff occurs once rainfall exceeds the initial abstraction
// 0.2·S:
//
//	Q = (P − 0.2S)² / (P + 0.8S)
//
// Higher curve numbers mean less retention and more runoff.
//
// # D8 flow direction
//
// Each land cell drains to exactly one of its 8 neighbors, encoded as
// a power of two: N=1, NE=2, E=4, SE=8, S=16, SW=32, W=64, NW=128, with
// 0 meaning no defined downslope neighbor (pit, flat, sea, or border).
// This solver selects the downhill neighbor with the *smallest*
// positive elevation drop rather than the conventional steepest
// descent. The gentlest-descent rule is part of the observable
// contract of the system and must not be changed.
package hydrology

import (
	"fmt"
	"math"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
)

// epsilon guards divisions against degenerate curve numbers and
// zero-rainfall denominators.
const epsilon = 1e-6

// Runoff computes per-cell surface runoff with the SCS-CN method.
// The three inputs must be co-registered. Sea cells (mask 0) produce
// exactly 0. Output is finite and non-negative for finite,
// non-negative rainfall, whatever the curve-number grid holds.
func Runoff(precip, cn *grid.Grid, mask *grid.Mask) (*grid.Grid, error) {
	if !precip.SameShape(cn) || !mask.CoversGrid(precip) {
		return nil, fmt.Errorf("%w: precip %dx%d, cn %dx%d, mask %dx%d",
			grid.ErrShapeMismatch,
			precip.Rows, precip.Cols, cn.Rows, cn.Cols, mask.Rows, mask.Cols)
	}

	out := grid.NewGrid(precip.Rows, precip.Cols)
	for i := range precip.Data {
		land := mask.Data[i] == 1

		c := cn.Data[i]
		if c <= 0 || !land {
			c = epsilon
		}
		p := precip.Data[i]
		if !land {
			p = 0
		}

		s := math.Max(1000/c-10, 0)
		if land && p > 0.2*s {
			d := p - 0.2*s
			out.Data[i] = d * d / (p + 0.8*s + epsilon)
		}
	}
	return out, nil
}
