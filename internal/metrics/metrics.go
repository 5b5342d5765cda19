package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame pipeline counters
	FramesRead     atomic.Uint64
	FramesRendered atomic.Uint64
	FileSessions   atomic.Uint64
	PipeSessions   atomic.Uint64

	// Error counters
	ReadErrors    atomic.Uint64
	ConvertErrors atomic.Uint64
	DisplayErrors atomic.Uint64

	// Latency tracking (most recent values, milliseconds)
	ConvertLatencyMs atomic.Uint64
	DisplayLatencyMs atomic.Uint64
	FrameLatencyMs   atomic.Uint64

	// Overrun counts frames whose processing exceeded the frame period.
	Overruns atomic.Uint64

	// Session state
	SessionActive atomic.Uint64 // 0 = idle, 1 = running
	PipeFPS       atomic.Uint64 // milli-FPS of the pipe producer

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name string
		help string
		load func() float64
	}{
		{
			"oledcam_frames_read_total",
			"Total frames pulled from the active source",
			func() float64 { return float64(m.FramesRead.Load()) },
		},
		{
			"oledcam_frames_rendered_total",
			"Total frames converted and submitted to the display",
			func() float64 { return float64(m.FramesRendered.Load()) },
		},
		{
			"oledcam_file_sessions_total",
			"Total file playback sessions started",
			func() float64 { return float64(m.FileSessions.Load()) },
		},
		{
			"oledcam_pipe_sessions_total",
			"Total real-time pipe sessions started",
			func() float64 { return float64(m.PipeSessions.Load()) },
		},
		{
			"oledcam_read_errors_total",
			"Total source read errors",
			func() float64 { return float64(m.ReadErrors.Load()) },
		},
		{
			"oledcam_convert_errors_total",
			"Total colorspace conversion errors",
			func() float64 { return float64(m.ConvertErrors.Load()) },
		},
		{
			"oledcam_display_errors_total",
			"Total display transfer errors",
			func() float64 { return float64(m.DisplayErrors.Load()) },
		},
		{
			"oledcam_convert_latency_ms",
			"Latest full-frame conversion latency in milliseconds",
			func() float64 { return float64(m.ConvertLatencyMs.Load()) },
		},
		{
			"oledcam_display_latency_ms",
			"Latest display transfer latency in milliseconds",
			func() float64 { return float64(m.DisplayLatencyMs.Load()) },
		},
		{
			"oledcam_frame_latency_ms",
			"Latest whole-frame processing latency in milliseconds",
			func() float64 { return float64(m.FrameLatencyMs.Load()) },
		},
		{
			"oledcam_frame_overruns_total",
			"Frames whose processing exceeded the frame period",
			func() float64 { return float64(m.Overruns.Load()) },
		},
		{
			"oledcam_session_active",
			"Display session active (0=idle, 1=running)",
			func() float64 { return float64(m.SessionActive.Load()) },
		},
		{
			"oledcam_pipe_fps",
			"Observed pipe producer frame rate",
			func() float64 { return float64(m.PipeFPS.Load()) / 1000.0 },
		},
	}

	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			g.load,
		))
	}
}

// ObserveFrame updates the per-frame latency gauges
func (m *Metrics) ObserveFrame(convert, display, total time.Duration) {
	m.ConvertLatencyMs.Store(uint64(convert.Milliseconds()))
	m.DisplayLatencyMs.Store(uint64(display.Milliseconds()))
	m.FrameLatencyMs.Store(uint64(total.Milliseconds()))
}

// SetPipeFPS records the observed producer rate
func (m *Metrics) SetPipeFPS(fps float64) {
	if fps < 0 {
		fps = 0
	}
	m.PipeFPS.Store(uint64(fps * 1000))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
