package hydrology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
	"github.com/couchcryptid/flood-risk-engine/internal/hydrology"
)

func TestNormalize_ScalesToUnitRange(t *testing.T) {
	g := grid.NewGrid(1, 3)
	copy(g.Data, []float64{2, 4, 6})

	n := hydrology.Normalize(g)
	assert.InDelta(t, 0.0, n.Data[0], 1e-6)
	assert.InDelta(t, 0.5, n.Data[1], 1e-6)
	assert.InDelta(t, 1.0, n.Data[2], 1e-6)
}

func TestNormalize_ConstantGridIsAllZero(t *testing.T) {
	n := hydrology.Normalize(constGrid(4, 4, 42))
	for _, v := range n.Data {
		assert.Zero(t, v)
	}
}

func TestComposeRisk_ShapePreserved(t *testing.T) {
	flow := constGrid(8, 6, 0)
	runoff := grid.NewGrid(8, 6)
	runoff.Set(3, 3, 5)

	risk, err := hydrology.ComposeRisk(flow, runoff)
	require.NoError(t, err)
	assert.Equal(t, 8, risk.Rows)
	assert.Equal(t, 6, risk.Cols)
}

func TestComposeRisk_ConstantInputsYieldZero(t *testing.T) {
	// Both inputs constant: both normalize to zero, the weighted sum
	// is zero, and smoothing a zero field leaves it zero.
	risk, err := hydrology.ComposeRisk(constGrid(5, 5, 7), constGrid(5, 5, 3))
	require.NoError(t, err)
	for _, v := range risk.Data {
		assert.Zero(t, v)
	}
}

func TestComposeRisk_WeightsRunoffHigher(t *testing.T) {
	// Flow direction is constant (normalizes away); runoff has a
	// single hot cell. The smoothed peak must stay at that cell and
	// below the 0.7 runoff weight.
	flow := constGrid(15, 15, 1)
	runoff := grid.NewGrid(15, 15)
	runoff.Set(7, 7, 100)

	risk, err := hydrology.ComposeRisk(flow, runoff)
	require.NoError(t, err)

	peakR, peakC, peak := 0, 0, -1.0
	for r := 0; r < risk.Rows; r++ {
		for c := 0; c < risk.Cols; c++ {
			if v := risk.At(r, c); v > peak {
				peakR, peakC, peak = r, c, v
			}
		}
	}
	assert.Equal(t, 7, peakR)
	assert.Equal(t, 7, peakC)
	assert.Less(t, peak, 0.7)
	assert.Positive(t, peak)
}

func TestComposeRisk_SmoothingPreservesMass(t *testing.T) {
	// The Gaussian kernel is renormalized at the edges, so a constant
	// offset survives smoothing untouched; combined with min-max
	// normalization the mean of the output tracks the input layout.
	flow := constGrid(21, 21, 0)
	runoff := constGrid(21, 21, 2)
	runoff.Set(10, 10, 10)

	risk, err := hydrology.ComposeRisk(flow, runoff)
	require.NoError(t, err)

	var sum float64
	for _, v := range risk.Data {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	// All mass comes from the one normalized hot cell (value 0.7),
	// spread but not created or destroyed away from the edges.
	assert.InDelta(t, 0.7, sum, 0.02)
}

func TestComposeRisk_ShapeMismatch(t *testing.T) {
	_, err := hydrology.ComposeRisk(constGrid(3, 3, 1), constGrid(3, 4, 1))
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}
