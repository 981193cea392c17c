package gridfile

import (
	"context"
	"math"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
	"github.com/couchcryptid/flood-risk-engine/internal/pipeline"
)

// Store implements the pipeline's Reader and Writer collaborators.
type Store struct{}

// Read loads a band with its declared no-data metadata. Values are
// returned untranslated; the pipeline cleanses them against the
// sentinel with its own tolerance.
func (Store) Read(_ context.Context, path string) (pipeline.SourceBand, error) {
	f, err := Open(path)
	if err != nil {
		return pipeline.SourceBand{}, err
	}
	return pipeline.SourceBand{
		Grid:      f.rawBand(),
		Nodata:    f.profile.Nodata,
		HasNodata: f.profile.HasNodata,
	}, nil
}

// Write persists the accumulated grid as a float32 single band,
// georeferencing copied from the raster at refPath.
func (Store) Write(_ context.Context, path string, g *grid.Grid, refPath string) error {
	ref, err := Open(refPath)
	if err != nil {
		return err
	}
	p := ref.profile
	p.Rows, p.Cols = g.Rows, g.Cols
	p.DType = Float32
	return Write(path, p, g)
}

// MaskFromNodata derives the land/sea mask from a reference band:
// cells holding the declared no-data value (or NaN) are sea.
func MaskFromNodata(f *File) *grid.Mask {
	mask := grid.NewMask(f.profile.Rows, f.profile.Cols)
	band := f.ReadBand()
	for i, v := range band.Data {
		if !math.IsNaN(v) {
			mask.Data[i] = 1
		}
	}
	return mask
}

// ByteBandSink stages windowed uint8 writes in memory and persists
// them as a single band once complete. The tiled engine commits
// through this, so a failed run never leaves a partial file.
type ByteBandSink struct {
	path    string
	profile Profile
	grid    *grid.ByteGrid
}

// NewByteBandSink creates a sink for a band shaped like the profile.
func NewByteBandSink(path string, p Profile) *ByteBandSink {
	p.DType = Uint8
	p.HasNodata = false
	return &ByteBandSink{path: path, profile: p, grid: grid.NewByteGrid(p.Rows, p.Cols)}
}

// WriteWindow places b at window w within the staged band.
func (s *ByteBandSink) WriteWindow(b *grid.ByteGrid, w grid.Window) error {
	if b.Rows != w.Height || b.Cols != w.Width {
		return grid.ErrShapeMismatch
	}
	if w.Row < 0 || w.Col < 0 || w.Row+w.Height > s.grid.Rows || w.Col+w.Width > s.grid.Cols {
		return grid.ErrWindowBounds
	}
	for r := 0; r < w.Height; r++ {
		for c := 0; c < w.Width; c++ {
			s.grid.Set(w.Row+r, w.Col+c, b.At(r, c))
		}
	}
	return nil
}

// Grid exposes the staged band.
func (s *ByteBandSink) Grid() *grid.ByteGrid { return s.grid }

// Flush persists the staged band.
func (s *ByteBandSink) Flush() error {
	return WriteBytes(s.path, s.profile, s.grid)
}
