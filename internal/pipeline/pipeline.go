// Package pipeline folds a sequence of precipitation rasters into an
// accumulated surface-runoff grid.
//
// Each file passes through crop → align → cleanse → runoff → sum. The
// crop and align stages are external collaborators working on files; a
// failure there (or in the runoff computation) skips that file and the
// run continues. Shape disagreement with the running total is
// different: it breaks the co-registration invariant and aborts the
// whole run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
	"github.com/couchcryptid/flood-risk-engine/internal/hydrology"
	"github.com/couchcryptid/flood-risk-engine/internal/observability"
)

// ErrNoResult indicates no file survived processing, so there is no
// accumulated grid. Distinct from an all-zero result.
var ErrNoResult = errors.New("pipeline: no files processed")

// nodataTolerance is the band around a file's declared no-data value
// inside which precipitation cells are treated as no-data. Radar
// products round the sentinel slightly between conversions.
const nodataTolerance = 1e-1

// Cropper restricts a raster file to the area of interest.
type Cropper interface {
	Crop(ctx context.Context, in, out string) error
}

// Aligner resamples a raster file onto the reference grid's shape and
// georeferencing.
type Aligner interface {
	Align(ctx context.Context, in, ref, out string) error
}

// SourceBand is one raster band plus the metadata the pipeline needs.
type SourceBand struct {
	Grid      *grid.Grid
	Nodata    float64
	HasNodata bool
}

// Reader loads a single band from a raster file.
type Reader interface {
	Read(ctx context.Context, path string) (SourceBand, error)
}

// Writer persists the accumulated grid as a float32 single band, with
// georeferencing copied from the raster at refPath.
type Writer interface {
	Write(ctx context.Context, path string, g *grid.Grid, refPath string) error
}

// Options carries the grids and paths an accumulation run operates on.
type Options struct {
	CurveNumber   *grid.Grid
	Mask          *grid.Mask
	ReferencePath string // alignment reference (the DEM)
	OutputPath    string // destination for the accumulated grid
	TempDir       string // scratch space for crop/align artifacts
}

// FileResult records one successfully accumulated file.
type FileResult struct {
	Path    string
	Summary grid.Summary
}

// Result is the outcome of a full accumulation run.
type Result struct {
	Accumulated *grid.Grid
	Files       []FileResult
	Skipped     int
	Total       grid.Summary
	FirstFile   string // source of the persisted georeferencing
}

// Pipeline drives the per-file crop-align-runoff-accumulate loop.
// It processes files strictly sequentially: the running total is a
// serial fold and each iteration owns transient scratch files.
type Pipeline struct {
	cropper Cropper
	aligner Aligner
	reader  Reader
	writer  Writer
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(c Cropper, a Aligner, r Reader, w Writer, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		cropper: c,
		aligner: a,
		reader:  r,
		writer:  w,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the pipeline has accumulated at
// least one file, or an error describing why the service is not ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no precipitation files accumulated yet")
	}
	return nil
}

// Run processes files in the order supplied and returns the
// accumulated runoff. Per-file stage failures skip the file;
// a shape mismatch against the running total aborts the run; zero
// surviving files yields ErrNoResult.
func (p *Pipeline) Run(ctx context.Context, files []string) (*Result, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.logger.Info("accumulation starting", "files", len(files))

	res := &Result{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}

		start := time.Now()
		runoff, err := p.processFile(ctx, file)
		if err != nil {
			p.logger.Warn("skipping file", "file", file, "error", err)
			p.metrics.FilesSkipped.Inc()
			res.Skipped++
			continue
		}

		if res.Accumulated == nil {
			res.Accumulated = grid.NewGrid(runoff.Rows, runoff.Cols)
			res.FirstFile = file
		} else if !res.Accumulated.SameShape(runoff) {
			return nil, fmt.Errorf("pipeline: file %s is %dx%d, running total is %dx%d: %w",
				file, runoff.Rows, runoff.Cols,
				res.Accumulated.Rows, res.Accumulated.Cols, grid.ErrShapeMismatch)
		}

		if err := res.Accumulated.Add(runoff); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}

		summary := grid.Summarize(runoff)
		res.Files = append(res.Files, FileResult{Path: file, Summary: summary})
		p.ready.Store(true)
		p.metrics.FilesProcessed.Inc()
		p.metrics.FileProcessingDuration.Observe(time.Since(start).Seconds())
		p.logger.Info("file accumulated", "file", file,
			"min", summary.Min, "max", summary.Max, "mean", summary.Mean)
	}

	if res.Accumulated == nil {
		return nil, ErrNoResult
	}

	res.Total = grid.Summarize(res.Accumulated)
	p.logger.Info("accumulation complete",
		"files", len(res.Files), "skipped", res.Skipped,
		"min", res.Total.Min, "max", res.Total.Max, "mean", res.Total.Mean)

	if p.opts.OutputPath != "" {
		if err := p.writer.Write(ctx, p.opts.OutputPath, res.Accumulated, res.FirstFile); err != nil {
			return nil, fmt.Errorf("pipeline: persist accumulated runoff: %w", err)
		}
		p.logger.Info("accumulated runoff written", "path", p.opts.OutputPath)
	}

	return res, nil
}

// processFile runs the per-file stages and returns a cleansed runoff
// grid. Scratch files from crop and align are removed before
// returning, on every path.
func (p *Pipeline) processFile(ctx context.Context, file string) (*grid.Grid, error) {
	cropped, err := scratchFile(p.opts.TempDir, "crop-*.grd")
	if err != nil {
		return nil, err
	}
	defer os.Remove(cropped)

	aligned, err := scratchFile(p.opts.TempDir, "align-*.grd")
	if err != nil {
		return nil, err
	}
	defer os.Remove(aligned)

	if err := p.cropper.Crop(ctx, file, cropped); err != nil {
		return nil, fmt.Errorf("crop: %w", err)
	}
	if err := p.aligner.Align(ctx, cropped, p.opts.ReferencePath, aligned); err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}

	band, err := p.reader.Read(ctx, aligned)
	if err != nil {
		return nil, fmt.Errorf("read aligned band: %w", err)
	}

	precip := p.cleansePrecipitation(file, band)

	runoff, err := hydrology.Runoff(precip, p.opts.CurveNumber, p.opts.Mask)
	if err != nil {
		return nil, fmt.Errorf("runoff: %w", err)
	}
	cleanseRunoff(runoff)
	return runoff, nil
}

// cleansePrecipitation zeroes declared no-data cells (within
// tolerance) and clamps residual negatives. A file with no positive
// value left is reported but still processed; its runoff is zero.
func (p *Pipeline) cleansePrecipitation(file string, band SourceBand) *grid.Grid {
	g := band.Grid
	var maxv float64
	negatives := 0
	for i, v := range g.Data {
		if band.HasNodata && math.Abs(v-band.Nodata) <= nodataTolerance {
			v = 0
		}
		if grid.IsNoData(v) {
			v = 0
		}
		if v < 0 {
			v = 0
			negatives++
		}
		g.Data[i] = v
		if v > maxv {
			maxv = v
		}
	}
	if negatives > 0 {
		p.logger.Warn("negative precipitation clamped", "file", file, "cells", negatives)
	}
	if maxv <= 0 {
		p.logger.Warn("no usable precipitation signal", "file", file)
		p.metrics.FilesNoSignal.Inc()
	}
	return g
}

// cleanseRunoff replaces residual NaN with 0 and clamps negatives.
// The runoff model already guarantees both for sane inputs; this keeps
// the running total finite when a file slips through with pathological
// values.
func cleanseRunoff(g *grid.Grid) {
	for i, v := range g.Data {
		if grid.IsNoData(v) || v < 0 {
			g.Data[i] = 0
		}
	}
}

// scratchFile reserves a unique temp file path.
func scratchFile(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("scratch file: %w", err)
	}
	name := f.Name()
	f.Close()
	return name, nil
}
