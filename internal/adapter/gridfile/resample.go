package gridfile

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
)

// ErrEmptyCrop indicates the area of interest does not intersect the raster.
var ErrEmptyCrop = errors.New("gridfile: area of interest outside raster extent")

// Bounds is a georeferenced bounding box.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// CropAligner implements the pipeline's Cropper and Aligner
// collaborators on gridfiles. With a nil bounds box, Crop degenerates
// to a plain copy.
type CropAligner struct {
	bounds *Bounds
}

// NewCropAligner creates a CropAligner restricted to the given area of
// interest. Pass nil to disable cropping.
func NewCropAligner(b *Bounds) *CropAligner {
	return &CropAligner{bounds: b}
}

// Crop restricts the raster at in to the configured area of interest
// and writes it to out with adjusted georeferencing.
func (ca *CropAligner) Crop(_ context.Context, in, out string) error {
	f, err := Open(in)
	if err != nil {
		return err
	}
	p := f.profile

	win := grid.Window{Height: p.Rows, Width: p.Cols}
	if ca.bounds != nil {
		win, err = cropWindow(p, *ca.bounds)
		if err != nil {
			return fmt.Errorf("%w: %s", err, in)
		}
	}

	sub, err := f.rawBand().Sub(win)
	if err != nil {
		return err
	}

	cp := p
	cp.Rows, cp.Cols = win.Height, win.Width
	cp.OriginX = p.OriginX + float64(win.Col)*p.PixelW
	cp.OriginY = p.OriginY + float64(win.Row)*p.PixelH
	if cp.DType == Uint8 {
		cp.DType = Float64
	}
	return Write(out, cp, sub)
}

// cropWindow converts a georeferenced box into a cell window,
// clamped to the raster extent.
func cropWindow(p Profile, b Bounds) (grid.Window, error) {
	c0, c1 := axisRange(b.MinX, b.MaxX, p.OriginX, p.PixelW, p.Cols)
	r0, r1 := axisRange(b.MinY, b.MaxY, p.OriginY, p.PixelH, p.Rows)
	if c1 <= c0 || r1 <= r0 {
		return grid.Window{}, ErrEmptyCrop
	}
	return grid.Window{Row: r0, Col: c0, Height: r1 - r0, Width: c1 - c0}, nil
}

// axisRange maps a coordinate interval onto cell indices along one
// axis. The pixel size may be negative (north-up rows), which flips
// which bound lands first.
func axisRange(lo, hi, origin, pixel float64, n int) (int, int) {
	a := (lo - origin) / pixel
	b := (hi - origin) / pixel
	if a > b {
		a, b = b, a
	}
	i0 := int(math.Floor(a))
	i1 := int(math.Ceil(b))
	return max(i0, 0), min(i1, n)
}

// Align resamples the raster at in onto the shape and georeferencing
// of the reference raster, using bilinear interpolation. Cells that
// fall outside the input, or whose support is entirely no-data, come
// out as no-data.
func (ca *CropAligner) Align(_ context.Context, in, ref, out string) error {
	src, err := Open(in)
	if err != nil {
		return err
	}
	refF, err := Open(ref)
	if err != nil {
		return err
	}

	sp, rp := src.profile, refF.profile
	op := rp
	op.DType = sp.DType
	if op.DType == Uint8 {
		op.DType = Float64
	}
	op.Nodata, op.HasNodata = sp.Nodata, sp.HasNodata

	band := src.ReadBand() // no-data as NaN
	outGrid := grid.NewGrid(rp.Rows, rp.Cols)
	for r := 0; r < rp.Rows; r++ {
		y := rp.OriginY + (float64(r)+0.5)*rp.PixelH
		fr := (y-sp.OriginY)/sp.PixelH - 0.5
		for c := 0; c < rp.Cols; c++ {
			x := rp.OriginX + (float64(c)+0.5)*rp.PixelW
			fc := (x-sp.OriginX)/sp.PixelW - 0.5
			outGrid.Set(r, c, bilinear(band, fr, fc))
		}
	}
	return Write(out, op, outGrid)
}

// bilinear samples band at fractional cell coordinates, weighting the
// four surrounding cells and renormalizing over the valid ones. NaN
// when no valid support exists.
func bilinear(band *grid.Grid, fr, fc float64) float64 {
	r0 := int(math.Floor(fr))
	c0 := int(math.Floor(fc))
	dr := fr - float64(r0)
	dc := fc - float64(c0)

	var sum, weight float64
	for _, s := range [4]struct {
		r, c int
		w    float64
	}{
		{r0, c0, (1 - dr) * (1 - dc)},
		{r0, c0 + 1, (1 - dr) * dc},
		{r0 + 1, c0, dr * (1 - dc)},
		{r0 + 1, c0 + 1, dr * dc},
	} {
		if s.r < 0 || s.r >= band.Rows || s.c < 0 || s.c >= band.Cols || s.w == 0 {
			continue
		}
		v := band.At(s.r, s.c)
		if math.IsNaN(v) {
			continue
		}
		sum += s.w * v
		weight += s.w
	}
	if weight == 0 {
		return math.NaN()
	}
	return sum / weight
}
