// Package gridfile implements the raster source/sink collaborators on
// a single-file gob container: one band of cells plus a profile
// carrying shape, data type, georeferencing, no-data value, and the
// native block layout. It stands where a GDAL-backed adapter would in
// a deployment that reads GeoTIFFs; the rest of the engine only sees
// the narrow interfaces this package satisfies.
package gridfile

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
)

// ErrDType indicates a band payload does not match its declared data type.
var ErrDType = errors.New("gridfile: payload does not match declared dtype")

// DType identifies the persisted cell type of a band.
type DType string

const (
	Float32 DType = "float32"
	Float64 DType = "float64"
	Uint8   DType = "uint8"
)

// defaultBlock is the native tile edge used when a profile does not
// declare its own block layout.
const defaultBlock = 256

// Profile describes a band without its cells.
//
// Georeferencing maps the center of cell (row, col) to
//
//	x = OriginX + (col+0.5)*PixelW
//	y = OriginY + (row+0.5)*PixelH
//
// with PixelH negative for north-up grids.
type Profile struct {
	Rows, Cols int
	DType      DType
	Nodata     float64
	HasNodata  bool

	OriginX, OriginY float64
	PixelW, PixelH   float64

	BlockRows, BlockCols int
}

// container is the on-disk gob layout. Exactly one payload slice is
// populated, per DType.
type container struct {
	Profile Profile
	F64     []float64
	F32     []float32
	U8      []uint8
}

// File is an opened gridfile band.
type File struct {
	profile Profile
	data    []float64 // raw cell values, no-data untranslated
	bytes   []uint8   // populated instead of data for uint8 bands
}

// Open reads and validates a gridfile.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gridfile: open %s: %w", path, err)
	}
	defer fh.Close()

	var c container
	if err := gob.NewDecoder(fh).Decode(&c); err != nil {
		return nil, fmt.Errorf("gridfile: decode %s: %w", path, err)
	}

	f := &File{profile: c.Profile}
	n := c.Profile.Rows * c.Profile.Cols
	switch c.Profile.DType {
	case Float64:
		if len(c.F64) != n {
			return nil, fmt.Errorf("%w: %s", ErrDType, path)
		}
		f.data = c.F64
	case Float32:
		if len(c.F32) != n {
			return nil, fmt.Errorf("%w: %s", ErrDType, path)
		}
		f.data = make([]float64, n)
		for i, v := range c.F32 {
			f.data[i] = float64(v)
		}
	case Uint8:
		if len(c.U8) != n {
			return nil, fmt.Errorf("%w: %s", ErrDType, path)
		}
		f.bytes = c.U8
	default:
		return nil, fmt.Errorf("%w: %s has dtype %q", ErrDType, path, c.Profile.DType)
	}
	return f, nil
}

// Profile returns the band's profile.
func (f *File) Profile() Profile { return f.profile }

// Shape returns the band dimensions.
func (f *File) Shape() (rows, cols int) { return f.profile.Rows, f.profile.Cols }

// BlockWindows returns the band's native tiling in row-major order.
func (f *File) BlockWindows() []grid.Window {
	bh, bw := f.profile.BlockRows, f.profile.BlockCols
	if bh <= 0 {
		bh = defaultBlock
	}
	if bw <= 0 {
		bw = defaultBlock
	}
	return grid.Tile(f.profile.Rows, f.profile.Cols, bh, bw)
}

// ReadBand returns the full band with file no-data translated to the
// in-memory NaN sentinel.
func (f *File) ReadBand() *grid.Grid {
	g := grid.NewGrid(f.profile.Rows, f.profile.Cols)
	for i := range g.Data {
		g.Data[i] = f.value(i)
	}
	return g
}

// ReadWindow returns the cells covered by w, no-data translated to NaN.
func (f *File) ReadWindow(w grid.Window) (*grid.Grid, error) {
	full := f.ReadBand()
	return full.Sub(w)
}

// rawBand returns the band without no-data translation, for callers
// that cleanse against the declared sentinel themselves.
func (f *File) rawBand() *grid.Grid {
	g := grid.NewGrid(f.profile.Rows, f.profile.Cols)
	if f.bytes != nil {
		for i, v := range f.bytes {
			g.Data[i] = float64(v)
		}
		return g
	}
	copy(g.Data, f.data)
	return g
}

func (f *File) value(i int) float64 {
	var v float64
	if f.bytes != nil {
		v = float64(f.bytes[i])
	} else {
		v = f.data[i]
	}
	if f.profile.HasNodata && v == f.profile.Nodata {
		return math.NaN()
	}
	return v
}

// Write persists a float grid under the given profile. Float32 bands
// are quantized on the way out; NaN cells become the profile's no-data
// value when one is declared.
func Write(path string, p Profile, g *grid.Grid) error {
	if g.Rows != p.Rows || g.Cols != p.Cols {
		return fmt.Errorf("gridfile: write %s: grid %dx%d, profile %dx%d: %w",
			path, g.Rows, g.Cols, p.Rows, p.Cols, grid.ErrShapeMismatch)
	}

	c := container{Profile: p}
	switch p.DType {
	case Float32:
		c.F32 = make([]float32, len(g.Data))
		for i, v := range g.Data {
			c.F32[i] = float32(outValue(v, p))
		}
	case Float64:
		c.F64 = make([]float64, len(g.Data))
		for i, v := range g.Data {
			c.F64[i] = outValue(v, p)
		}
	default:
		return fmt.Errorf("%w: write %s as %q", ErrDType, path, p.DType)
	}
	return encode(path, c)
}

// WriteBytes persists a uint8 grid (masks, D8 codes).
func WriteBytes(path string, p Profile, b *grid.ByteGrid) error {
	if b.Rows != p.Rows || b.Cols != p.Cols {
		return fmt.Errorf("gridfile: write %s: grid %dx%d, profile %dx%d: %w",
			path, b.Rows, b.Cols, p.Rows, p.Cols, grid.ErrShapeMismatch)
	}
	p.DType = Uint8
	c := container{Profile: p, U8: append([]uint8(nil), b.Data...)}
	return encode(path, c)
}

func outValue(v float64, p Profile) float64 {
	if math.IsNaN(v) && p.HasNodata {
		return p.Nodata
	}
	return v
}

func encode(path string, c container) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("gridfile: create %s: %w", path, err)
	}
	if err := gob.NewEncoder(fh).Encode(&c); err != nil {
		fh.Close()
		return fmt.Errorf("gridfile: encode %s: %w", path, err)
	}
	return fh.Close()
}
