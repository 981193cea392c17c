// Command validate performs integrity checks across a flood-risk
// dataset: the DEM, the curve-number map, and the radar directory. It
// verifies that each file opens, prints profiles and band statistics,
// and confirms the grids are co-registered with the DEM.
//
// Usage:
//
//	go run ./cmd/validate -dem data/dem.grd -cn data/cn_map.grd -radar-dir data/radar
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/flood-risk-engine/internal/adapter/gridfile"
	"github.com/couchcryptid/flood-risk-engine/internal/grid"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dem := flag.String("dem", "", "path to the DEM gridfile")
	cn := flag.String("cn", "", "path to the curve-number gridfile")
	radarDir := flag.String("radar-dir", "", "directory of radar gridfiles")
	flag.Parse()

	if *dem == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*dem, *cn, *radarDir); code != 0 {
		os.Exit(code)
	}
}

func run(demPath, cnPath, radarDir string) int {
	var phases []*phase

	demPhase := &phase{name: "dem"}
	demFile := checkFile(demPhase, demPath)
	phases = append(phases, demPhase)

	if cnPath != "" {
		p := &phase{name: "cn"}
		if f := checkFile(p, cnPath); f != nil && demFile != nil {
			checkCoRegistered(p, demFile, f)
		}
		phases = append(phases, p)
	}

	if radarDir != "" {
		p := &phase{name: "radar"}
		checkRadarDir(p, radarDir)
		phases = append(phases, p)
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  %s\n", e)
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// checkFile opens a gridfile, prints its profile and statistics, and
// records structural problems.
func checkFile(p *phase, path string) *gridfile.File {
	f, err := gridfile.Open(path)
	if err != nil {
		p.errorf("open: %v", err)
		return nil
	}
	prof := f.Profile()
	if prof.Rows <= 0 || prof.Cols <= 0 {
		p.errorf("%s: degenerate shape %dx%d", path, prof.Rows, prof.Cols)
		return nil
	}

	band := f.ReadBand()
	fmt.Printf("%s: %dx%d %s nodata=%v blocks=%dx%d\n",
		path, prof.Rows, prof.Cols, prof.DType,
		nodataString(prof), prof.BlockRows, prof.BlockCols)
	fmt.Printf("  %s (valid cells: %d/%d)\n",
		grid.Summarize(dropNaN(band)), countValid(band), len(band.Data))
	return f
}

func checkCoRegistered(p *phase, ref, f *gridfile.File) {
	rr, rc := ref.Shape()
	fr, fc := f.Shape()
	if rr != fr || rc != fc {
		p.errorf("not co-registered with DEM: %dx%d vs %dx%d", fr, fc, rr, rc)
	}
	rp, fp := ref.Profile(), f.Profile()
	if rp.OriginX != fp.OriginX || rp.OriginY != fp.OriginY ||
		rp.PixelW != fp.PixelW || rp.PixelH != fp.PixelH {
		p.errorf("georeferencing differs from DEM")
	}
}

func checkRadarDir(p *phase, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		p.errorf("list: %v", err)
		return
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".grd") {
			continue
		}
		count++
		checkFile(p, filepath.Join(dir, e.Name()))
	}
	if count == 0 {
		p.errorf("no .grd files in %s", dir)
	}
}

// dropNaN strips no-data cells so statistics cover valid ground only.
func dropNaN(g *grid.Grid) *grid.Grid {
	out := &grid.Grid{Rows: 1}
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			out.Data = append(out.Data, v)
		}
	}
	out.Cols = len(out.Data)
	return out
}

func countValid(g *grid.Grid) int {
	n := 0
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

func nodataString(p gridfile.Profile) any {
	if !p.HasNodata {
		return "none"
	}
	return p.Nodata
}
