// Command floodrisk runs one flood-risk batch over a terrain grid and
// a directory of precipitation rasters: accumulated SCS-CN runoff,
// tiled D8 flow direction, a composed risk map, and threshold-based
// flood alerts. Health, readiness, and Prometheus metrics are served
// over HTTP for the duration of the run.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/couchcryptid/flood-risk-engine/internal/adapter/gridfile"
	httpadapter "github.com/couchcryptid/flood-risk-engine/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flood-risk-engine/internal/adapter/kafka"
	"github.com/couchcryptid/flood-risk-engine/internal/alert"
	"github.com/couchcryptid/flood-risk-engine/internal/config"
	"github.com/couchcryptid/flood-risk-engine/internal/engine"
	"github.com/couchcryptid/flood-risk-engine/internal/grid"
	"github.com/couchcryptid/flood-risk-engine/internal/hydrology"
	"github.com/couchcryptid/flood-risk-engine/internal/observability"
	"github.com/couchcryptid/flood-risk-engine/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("batch run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dem, err := gridfile.Open(cfg.DEMPath)
	if err != nil {
		return fmt.Errorf("open DEM: %w", err)
	}
	mask := gridfile.MaskFromNodata(dem)

	cnFile, err := gridfile.Open(cfg.CNPath)
	if err != nil {
		return fmt.Errorf("open curve-number map: %w", err)
	}
	cn := cnFile.ReadBand()

	var bounds *gridfile.Bounds
	if cfg.CropEnabled() {
		bounds = &gridfile.Bounds{
			MinX: cfg.AOIMinX, MinY: cfg.AOIMinY,
			MaxX: cfg.AOIMaxX, MaxY: cfg.AOIMaxY,
		}
	}
	ca := gridfile.NewCropAligner(bounds)

	p := pipeline.New(ca, ca, gridfile.Store{}, gridfile.Store{}, pipeline.Options{
		CurveNumber:   cn,
		Mask:          mask,
		ReferencePath: cfg.DEMPath,
		OutputPath:    cfg.RunoffOutputPath,
		TempDir:       cfg.TempDir,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}()

	files, err := radarFiles(cfg.RadarDir)
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, files)
	if err != nil {
		return fmt.Errorf("accumulation: %w", err)
	}

	flow, err := flowDirection(ctx, cfg, logger, metrics, dem, mask)
	if err != nil {
		return err
	}

	risk, err := hydrology.ComposeRisk(flow.Float(), res.Accumulated)
	if err != nil {
		return fmt.Errorf("risk composition: %w", err)
	}
	if cfg.RiskOutputPath != "" {
		rp := dem.Profile()
		rp.DType = gridfile.Float32
		rp.HasNodata = false
		if err := gridfile.Write(cfg.RiskOutputPath, rp, risk); err != nil {
			return fmt.Errorf("persist risk map: %w", err)
		}
		logger.Info("risk map written", "path", cfg.RiskOutputPath)
	}

	return publishAlerts(ctx, cfg, logger, metrics, res.Accumulated)
}

// flowDirection runs the tiled D8 engine over the DEM and persists the
// direction raster.
func flowDirection(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, dem *gridfile.File, mask *grid.Mask) (*grid.ByteGrid, error) {
	sink := gridfile.NewByteBandSink(cfg.FlowDirOutputPath, dem.Profile())
	eng := engine.New(cfg.Workers, logger, metrics)
	if err := eng.Run(ctx, dem, sink, mask); err != nil {
		return nil, fmt.Errorf("flow direction: %w", err)
	}
	if err := sink.Flush(); err != nil {
		return nil, fmt.Errorf("persist flow direction: %w", err)
	}
	logger.Info("flow direction written", "path", cfg.FlowDirOutputPath)
	return sink.Grid(), nil
}

// publishAlerts detects risk zones in the accumulated runoff and, when
// alerting is configured and zones exist, publishes a report. A failed
// publish is logged, not fatal: the rasters are already on disk.
func publishAlerts(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, acc *grid.Grid) error {
	report := alert.Detect(acc, cfg.AlertThreshold)
	metrics.AlertZoneCells.Set(float64(report.Count))

	if !report.Exceeded() {
		logger.Info("no flood-risk zones", "threshold", cfg.AlertThreshold)
		return nil
	}
	logger.Warn("flood-risk zones detected",
		"zones", report.Count, "threshold", cfg.AlertThreshold)

	if !cfg.AlertsEnabled() {
		return nil
	}
	writer := kafkaadapter.NewAlertWriter(cfg, logger)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}()

	if err := writer.Publish(ctx, report); err != nil {
		logger.Error("alert publish failed", "error", err)
		return nil
	}
	metrics.AlertsPublished.Inc()
	return nil
}

// radarFiles lists the precipitation rasters under dir in name order.
func radarFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list radar dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".grd") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
