// Command genmock writes a synthetic dataset for local runs and
// integration experiments: a DEM with a sea border and a central
// valley, a curve-number map, and a handful of radar precipitation
// files with rain cells and no-data patches.
//
// Usage:
//
//	go run ./cmd/genmock -out data -rows 64 -cols 64 -files 3
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/couchcryptid/flood-risk-engine/internal/adapter/gridfile"
	"github.com/couchcryptid/flood-risk-engine/internal/grid"
)

const (
	demNodata   = -9999.0
	radarNodata = -99.0
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data", "output directory")
	rows := flag.Int("rows", 64, "grid rows")
	cols := flag.Int("cols", 64, "grid cols")
	files := flag.Int("files", 3, "number of radar files")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if err := os.MkdirAll(filepath.Join(*out, "radar"), 0o755); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(*seed))

	p := gridfile.Profile{
		Rows: *rows, Cols: *cols,
		OriginX: 14.0, OriginY: 41.5, // arbitrary lon/lat anchor
		PixelW: 0.01, PixelH: -0.01,
		BlockRows: 16, BlockCols: 16,
	}

	demPath := filepath.Join(*out, "dem.grd")
	if err := writeDEM(demPath, p, rng); err != nil {
		return err
	}
	log.Printf("wrote %s", demPath)

	cnPath := filepath.Join(*out, "cn_map.grd")
	if err := writeCN(cnPath, p, rng); err != nil {
		return err
	}
	log.Printf("wrote %s", cnPath)

	for i := 0; i < *files; i++ {
		path := filepath.Join(*out, "radar", fmt.Sprintf("radar_%02d.grd", i))
		if err := writeRadar(path, p, rng); err != nil {
			return err
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

// writeDEM builds a tilted surface draining toward a central valley,
// with a 2-cell sea ring of no-data around it.
func writeDEM(path string, p gridfile.Profile, rng *rand.Rand) error {
	p.DType = gridfile.Float64
	p.Nodata, p.HasNodata = demNodata, true

	g := grid.NewGrid(p.Rows, p.Cols)
	midC := float64(p.Cols) / 2
	for r := 0; r < p.Rows; r++ {
		for c := 0; c < p.Cols; c++ {
			if r < 2 || c < 2 || r >= p.Rows-2 || c >= p.Cols-2 {
				g.Set(r, c, demNodata)
				continue
			}
			valley := math.Abs(float64(c) - midC) // V-profile toward the middle column
			slope := float64(p.Rows-r) * 0.5      // drains south
			g.Set(r, c, 100+slope+3*valley+rng.Float64()*0.1)
		}
	}
	return gridfile.Write(path, p, g)
}

// writeCN fills a plausible curve-number field: mostly 70-90 with a
// few impervious pockets.
func writeCN(path string, p gridfile.Profile, rng *rand.Rand) error {
	p.DType = gridfile.Float64
	p.HasNodata = false

	g := grid.NewGrid(p.Rows, p.Cols)
	for i := range g.Data {
		cn := 70 + rng.Float64()*20
		if rng.Float64() < 0.05 {
			cn = 95 + rng.Float64()*3
		}
		g.Data[i] = cn
	}
	return gridfile.Write(path, p, g)
}

// writeRadar places a few Gaussian rain cells on a dry field, plus
// scattered no-data speckle like a real radar product.
func writeRadar(path string, p gridfile.Profile, rng *rand.Rand) error {
	p.DType = gridfile.Float64
	p.Nodata, p.HasNodata = radarNodata, true

	g := grid.NewGrid(p.Rows, p.Cols)
	cells := 2 + rng.Intn(3)
	for i := 0; i < cells; i++ {
		cr := rng.Float64() * float64(p.Rows)
		cc := rng.Float64() * float64(p.Cols)
		peak := 10 + rng.Float64()*40
		radius := 4 + rng.Float64()*8
		for r := 0; r < p.Rows; r++ {
			for c := 0; c < p.Cols; c++ {
				d2 := (float64(r)-cr)*(float64(r)-cr) + (float64(c)-cc)*(float64(c)-cc)
				g.Data[r*p.Cols+c] += peak * math.Exp(-d2/(2*radius*radius))
			}
		}
	}
	for i := range g.Data {
		if rng.Float64() < 0.01 {
			g.Data[i] = radarNodata
		}
	}
	return gridfile.Write(path, p, g)
}
