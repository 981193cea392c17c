package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// flood-risk batch engine.
type Metrics struct {
	FilesProcessed  prometheus.Counter
	FilesSkipped    prometheus.Counter
	FilesNoSignal   prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Per-file accumulation metrics.
	FileProcessingDuration prometheus.Histogram

	// Tiled flow-direction metrics.
	TilesProcessed prometheus.Counter
	TileDuration   prometheus.Histogram

	// Alerting metrics.
	AlertsPublished prometheus.Counter
	AlertZoneCells  prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "files_processed_total",
			Help:      "Precipitation files successfully folded into the running total.",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "files_skipped_total",
			Help:      "Precipitation files skipped after a crop, align, or runoff failure.",
		}),
		FilesNoSignal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "files_no_signal_total",
			Help:      "Files whose cleansed precipitation had no value above zero.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_risk",
			Name:      "pipeline_running",
			Help:      "1 while the accumulation pipeline is active, 0 otherwise.",
		}),
		FileProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "file_processing_duration_seconds",
			Help:      "Duration of one crop-align-runoff-accumulate iteration.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		TilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "tiles_processed_total",
			Help:      "Elevation tiles solved for flow direction.",
		}),
		TileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "tile_duration_seconds",
			Help:      "Duration of a single D8 tile solve.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "alerts_published_total",
			Help:      "Flood alerts published to the alert topic.",
		}),
		AlertZoneCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_risk",
			Name:      "alert_zone_cells",
			Help:      "Cells above the alert threshold in the latest accumulation.",
		}),
	}

	prometheus.MustRegister(
		m.FilesProcessed,
		m.FilesSkipped,
		m.FilesNoSignal,
		m.PipelineRunning,
		m.FileProcessingDuration,
		m.TilesProcessed,
		m.TileDuration,
		m.AlertsPublished,
		m.AlertZoneCells,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FilesProcessed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "files_processed_total"}),
		FilesSkipped:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "files_skipped_total"}),
		FilesNoSignal:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "files_no_signal_total"}),
		PipelineRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_risk", Name: "pipeline_running"}),
		FileProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "file_processing_duration_seconds"}),
		TilesProcessed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "tiles_processed_total"}),
		TileDuration:           prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "tile_duration_seconds"}),
		AlertsPublished:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "alerts_published_total"}),
		AlertZoneCells:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_risk", Name: "alert_zone_cells"}),
	}
}
