package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
	"github.com/couchcryptid/flood-risk-engine/internal/observability"
	"github.com/couchcryptid/flood-risk-engine/internal/pipeline"
)

// --- mocks ---

type fakeCropper struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeCropper) Crop(_ context.Context, in, _ string) error {
	f.calls++
	if f.failFor[in] {
		return errors.New("crop failed")
	}
	return nil
}

type fakeAligner struct {
	err   error
	calls int
}

func (f *fakeAligner) Align(_ context.Context, _, _, _ string) error {
	f.calls++
	return f.err
}

// fakeReader hands out a fresh band per call so cleansing in one
// iteration cannot leak into the next.
type fakeReader struct {
	seq   []func() pipeline.SourceBand
	calls int
}

func (f *fakeReader) Read(_ context.Context, _ string) (pipeline.SourceBand, error) {
	if f.calls >= len(f.seq) {
		return pipeline.SourceBand{}, errors.New("unexpected read")
	}
	band := f.seq[f.calls]()
	f.calls++
	return band, nil
}

type fakeWriter struct {
	path    string
	grid    *grid.Grid
	refPath string
	calls   int
}

func (f *fakeWriter) Write(_ context.Context, path string, g *grid.Grid, refPath string) error {
	f.calls++
	f.path = path
	f.grid = g
	f.refPath = refPath
	return nil
}

// --- helpers ---

const (
	rows = 4
	cols = 5
)

func landMask(t *testing.T) *grid.Mask {
	t.Helper()
	m := grid.NewMask(rows, cols)
	for i := range m.Data {
		m.Data[i] = 1
	}
	return m
}

func constGrid(v float64) *grid.Grid {
	g := grid.NewGrid(rows, cols)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

func constBand(v float64) func() pipeline.SourceBand {
	return func() pipeline.SourceBand {
		return pipeline.SourceBand{Grid: constGrid(v)}
	}
}

func newPipeline(t *testing.T, c pipeline.Cropper, a pipeline.Aligner, r pipeline.Reader, w pipeline.Writer, opts pipeline.Options) *pipeline.Pipeline {
	t.Helper()
	if opts.CurveNumber == nil {
		opts.CurveNumber = constGrid(80)
	}
	if opts.Mask == nil {
		opts.Mask = landMask(t)
	}
	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	return pipeline.New(c, a, r, w, opts, slog.Default(), observability.NewMetricsForTesting())
}

// expectedRunoff mirrors the curve-number model for CN 80 and uniform
// precipitation p, so accumulation sums can be asserted exactly.
func expectedRunoff(p float64) float64 {
	s := 1000.0/80.0 - 10.0
	if p <= 0.2*s {
		return 0
	}
	return (p - 0.2*s) * (p - 0.2*s) / (p + 0.8*s + 1e-6)
}

// --- tests ---

func TestRun_AccumulatesIdenticalFiles(t *testing.T) {
	reader := &fakeReader{seq: []func() pipeline.SourceBand{
		constBand(5), constBand(5), constBand(5),
	}}
	writer := &fakeWriter{}
	p := newPipeline(t, &fakeCropper{}, &fakeAligner{}, reader, writer, pipeline.Options{
		OutputPath: "out.grd",
	})

	res, err := p.Run(context.Background(), []string{"a.grd", "b.grd", "c.grd"})
	require.NoError(t, err)

	assert.Len(t, res.Files, 3)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, "a.grd", res.FirstFile)

	want := 3 * expectedRunoff(5)
	for _, v := range res.Accumulated.Data {
		assert.InDelta(t, want, v, 1e-9)
	}
	assert.InDelta(t, want, res.Total.Max, 1e-9)

	require.Equal(t, 1, writer.calls)
	assert.Equal(t, "out.grd", writer.path)
	assert.Equal(t, "a.grd", writer.refPath)
	assert.Same(t, res.Accumulated, writer.grid)
}

func TestRun_CropFailureSkipsFile(t *testing.T) {
	reader := &fakeReader{seq: []func() pipeline.SourceBand{
		constBand(5), constBand(5),
	}}
	cropper := &fakeCropper{failFor: map[string]bool{"b.grd": true}}
	p := newPipeline(t, cropper, &fakeAligner{}, reader, &fakeWriter{}, pipeline.Options{})

	res, err := p.Run(context.Background(), []string{"a.grd", "b.grd", "c.grd"})
	require.NoError(t, err)

	assert.Len(t, res.Files, 2)
	assert.Equal(t, 1, res.Skipped)
	want := 2 * expectedRunoff(5)
	assert.InDelta(t, want, res.Accumulated.Data[0], 1e-9)
}

func TestRun_AlignFailureSkipsAllFiles(t *testing.T) {
	p := newPipeline(t, &fakeCropper{}, &fakeAligner{err: errors.New("resample failed")},
		&fakeReader{}, &fakeWriter{}, pipeline.Options{})

	res, err := p.Run(context.Background(), []string{"a.grd", "b.grd"})
	assert.ErrorIs(t, err, pipeline.ErrNoResult)
	assert.Nil(t, res)
}

func TestRun_MisshapenBandSkipped(t *testing.T) {
	// A band that disagrees with the curve-number grid fails the runoff
	// stage and is skipped like any other per-file failure.
	small := grid.NewGrid(rows-1, cols)
	reader := &fakeReader{seq: []func() pipeline.SourceBand{
		constBand(5),
		func() pipeline.SourceBand { return pipeline.SourceBand{Grid: small} },
	}}
	p := newPipeline(t, &fakeCropper{}, &fakeAligner{}, reader, &fakeWriter{}, pipeline.Options{})

	res, err := p.Run(context.Background(), []string{"a.grd", "b.grd"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Files, 1)
}

func TestRun_NoFilesIsError(t *testing.T) {
	p := newPipeline(t, &fakeCropper{}, &fakeAligner{}, &fakeReader{}, &fakeWriter{}, pipeline.Options{})

	res, err := p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, pipeline.ErrNoResult)
	assert.Nil(t, res)
}

func TestRun_NodataAndNegativesCleansed(t *testing.T) {
	band := func() pipeline.SourceBand {
		g := constGrid(5)
		g.Data[0] = -99.04 // within tolerance of declared no-data
		g.Data[1] = -3     // residual negative
		g.Data[2] = math.NaN()
		return pipeline.SourceBand{Grid: g, Nodata: -99, HasNodata: true}
	}
	reader := &fakeReader{seq: []func() pipeline.SourceBand{band}}
	p := newPipeline(t, &fakeCropper{}, &fakeAligner{}, reader, &fakeWriter{}, pipeline.Options{})

	res, err := p.Run(context.Background(), []string{"a.grd"})
	require.NoError(t, err)

	// Cleansed cells carry zero precipitation, hence zero runoff.
	assert.Zero(t, res.Accumulated.Data[0])
	assert.Zero(t, res.Accumulated.Data[1])
	assert.Zero(t, res.Accumulated.Data[2])
	assert.InDelta(t, expectedRunoff(5), res.Accumulated.Data[3], 1e-9)
}

func TestRun_NoSignalFileStillAccumulates(t *testing.T) {
	reader := &fakeReader{seq: []func() pipeline.SourceBand{constBand(0)}}
	p := newPipeline(t, &fakeCropper{}, &fakeAligner{}, reader, &fakeWriter{}, pipeline.Options{})

	res, err := p.Run(context.Background(), []string{"dry.grd"})
	require.NoError(t, err)
	assert.Len(t, res.Files, 1)
	for _, v := range res.Accumulated.Data {
		assert.Zero(t, v)
	}
}

func TestRun_ScratchFilesRemoved(t *testing.T) {
	tmp := t.TempDir()
	reader := &fakeReader{seq: []func() pipeline.SourceBand{constBand(5), constBand(5)}}
	cropper := &fakeCropper{failFor: map[string]bool{"b.grd": true}}
	p := newPipeline(t, cropper, &fakeAligner{}, reader, &fakeWriter{}, pipeline.Options{
		TempDir: tmp,
	})

	_, err := p.Run(context.Background(), []string{"a.grd", "b.grd", "c.grd"})
	require.NoError(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	var leftovers []string
	for _, e := range entries {
		leftovers = append(leftovers, filepath.Join(tmp, e.Name()))
	}
	assert.Empty(t, leftovers)
}

func TestRun_CancelledContext(t *testing.T) {
	reader := &fakeReader{seq: []func() pipeline.SourceBand{constBand(5)}}
	p := newPipeline(t, &fakeCropper{}, &fakeAligner{}, reader, &fakeWriter{}, pipeline.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []string{"a.grd"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckReadiness(t *testing.T) {
	reader := &fakeReader{seq: []func() pipeline.SourceBand{constBand(5)}}
	p := newPipeline(t, &fakeCropper{}, &fakeAligner{}, reader, &fakeWriter{}, pipeline.Options{})

	assert.Error(t, p.CheckReadiness(context.Background()))

	_, err := p.Run(context.Background(), []string{"a.grd"})
	require.NoError(t, err)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}
