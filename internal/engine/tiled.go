// Package engine runs the D8 flow-direction solver over a large
// elevation raster by partitioning it into its native blocks and
// solving the blocks on a fixed pool of workers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
	"github.com/couchcryptid/flood-risk-engine/internal/hydrology"
	"github.com/couchcryptid/flood-risk-engine/internal/observability"
)

// ElevationSource exposes the subset of a raster the engine reads:
// its shape, its native tiling, and windowed band access.
type ElevationSource interface {
	Shape() (rows, cols int)
	BlockWindows() []grid.Window
	ReadWindow(w grid.Window) (*grid.Grid, error)
}

// DirectionSink receives each tile's flow-direction interior at its
// window within the full output grid. The engine calls it from a
// single goroutine, and only after every tile solved successfully.
type DirectionSink interface {
	WriteWindow(b *grid.ByteGrid, w grid.Window) error
}

// Engine is the tiled flow-direction runner.
type Engine struct {
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Engine. workers <= 0 means one worker per available CPU.
func New(workers int, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{workers: workers, logger: logger, metrics: metrics}
}

// tileResult pairs a solved interior with its placement window.
type tileResult struct {
	win grid.Window
	out *grid.ByteGrid
}

// Run partitions src into its native blocks (row-major), expands each
// block by a 1-cell halo where grid bounds allow, solves the blocks in
// parallel, and writes every block's interior back to dst.
//
// The mask must be co-registered with the full source grid; each
// worker slices its own window from it. Any worker failure aborts the
// run and nothing is committed to dst: results are staged in memory
// and written only once all tiles succeeded.
func (e *Engine) Run(ctx context.Context, src ElevationSource, dst DirectionSink, mask *grid.Mask) error {
	rows, cols := src.Shape()
	if mask.Rows != rows || mask.Cols != cols {
		return fmt.Errorf("%w: source %dx%d, mask %dx%d",
			grid.ErrShapeMismatch, rows, cols, mask.Rows, mask.Cols)
	}

	blocks := src.BlockWindows()
	e.logger.Info("tiled flow direction starting",
		"rows", rows, "cols", cols, "tiles", len(blocks), "workers", e.workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan grid.Window)
	results := make(chan tileResult, len(blocks))
	errs := make(chan error, e.workers)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for win := range tasks {
				res, err := e.solveTile(src, mask, win, rows, cols)
				if err != nil {
					errs <- err
					cancel()
					return
				}
				results <- res
			}
		}()
	}

feed:
	for _, win := range blocks {
		select {
		case tasks <- win:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()
	close(results)
	close(errs)

	if err := <-errs; err != nil {
		return fmt.Errorf("engine: tile worker: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	// Single-writer commit, tiles in completion order. Interiors of
	// distinct blocks never overlap, so order does not matter.
	for res := range results {
		if res.out == nil {
			continue
		}
		if err := dst.WriteWindow(res.out, res.win); err != nil {
			return fmt.Errorf("engine: write %v: %w", res.win, err)
		}
	}

	e.logger.Info("tiled flow direction complete", "tiles", len(blocks))
	return nil
}

// solveTile reads one haloed block, solves it, and returns the
// interior with its placement window. Blocks too thin to have an
// interior produce a nil result.
func (e *Engine) solveTile(src ElevationSource, mask *grid.Mask, win grid.Window, rows, cols int) (tileResult, error) {
	start := time.Now()

	ex := win.Expand(1, rows, cols)
	elev, err := src.ReadWindow(ex)
	if err != nil {
		return tileResult{}, fmt.Errorf("read %v: %w", ex, err)
	}
	sub, err := mask.SubMask(ex)
	if err != nil {
		return tileResult{}, fmt.Errorf("mask %v: %w", ex, err)
	}

	dirs, err := hydrology.FlowDirection(elev, sub)
	if err != nil {
		return tileResult{}, fmt.Errorf("solve %v: %w", ex, err)
	}

	e.metrics.TilesProcessed.Inc()
	e.metrics.TileDuration.Observe(time.Since(start).Seconds())

	if dirs.Rows == 0 || dirs.Cols == 0 {
		return tileResult{}, nil
	}
	return tileResult{win: ex.Interior(), out: dirs}, nil
}
