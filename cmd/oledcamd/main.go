package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/one-project/oledcam/internal/display"
	"github.com/one-project/oledcam/internal/logger"
	"github.com/one-project/oledcam/internal/metrics"
	"github.com/one-project/oledcam/internal/oled"
	"github.com/one-project/oledcam/internal/preview"
	"github.com/one-project/oledcam/internal/recorder"
	"github.com/one-project/oledcam/pkg/types"
)

var (
	// Command-line flags
	width        = flag.Int("width", types.DefaultWidth, "Frame width in pixels")
	height       = flag.Int("height", types.DefaultHeight, "Frame height in pixels")
	fps          = flag.Int("fps", types.DefaultFPS, "Target display frame rate")
	pipePath     = flag.String("pipe", types.DefaultPipePath, "Named pipe path for realtime input")
	httpAddr     = flag.String("http", ":8081", "HTTP server address")
	metricsAddr  = flag.String("metrics", ":9090", "Metrics server address")
	pprofAddr    = flag.String("pprof", ":6060", "pprof server address")
	recordPath   = flag.String("record-path", "./captures", "Capture output path")
	previewScale = flag.Int("preview-scale", 2, "Preview image scale factor")
	spiPort      = flag.String("spi", "", "SPI port name (empty for first available)")
	dcPin        = flag.String("dc", "GPIO22", "Data/command GPIO pin")
	rstPin       = flag.String("rst", "GPIO13", "Reset GPIO pin")
	noDisplay    = flag.Bool("no-display", false, "Run without OLED hardware")
	logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor     = flag.Bool("log-color", true, "Enable colored log output")
)

// Server ties the display controller to its HTTP control surface.
type Server struct {
	metrics    *metrics.Metrics
	controller *display.Controller
	sink       display.Sink
	preview    *preview.Server
	recorder   *recorder.Recorder
	httpServer *http.Server
	startedAt  time.Time
}

func main() {
	flag.Parse()

	// Initialize logger
	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	logger.Info("Main", "Display daemon starting...")
	logger.Info("Main", "Log level: %s", level)

	srv, err := NewServer()
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")

	if err := srv.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// NewServer assembles the daemon components.
func NewServer() (*Server, error) {
	res, err := types.NewResolution(*width, *height)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	var sink display.Sink
	if *noDisplay {
		logger.Info("Main", "Running with null display sink")
		sink = oled.NewNull(res)
	} else {
		cfg := oled.DefaultConfig()
		cfg.SPIPort = *spiPort
		cfg.DCPin = *dcPin
		cfg.RSTPin = *rstPin
		dev, err := oled.Open(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("open display: %w", err)
		}
		sink = dev
	}

	ctrl, err := display.NewController(res, *fps, *pipePath, sink, m)
	if err != nil {
		sink.Close()
		return nil, err
	}

	pv := preview.NewServer(res, *previewScale)
	ctrl.SetTap(pv)

	rec := recorder.New(*recordPath, res.YUVFrameSize())
	ctrl.SetRecorder(rec)

	mux := http.NewServeMux()
	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: mux,
	}

	srv := &Server{
		metrics:    m,
		controller: ctrl,
		sink:       sink,
		preview:    pv,
		recorder:   rec,
		httpServer: httpServer,
		startedAt:  time.Now(),
	}

	srv.setupRoutes(mux)

	return srv, nil
}

// Start brings up the HTTP, metrics and pprof listeners.
func (s *Server) Start() error {
	log.Printf("Starting display daemon...")
	log.Printf("  Resolution: %dx%d @ %d fps", *width, *height, *fps)
	log.Printf("  Pipe path: %s", *pipePath)
	log.Printf("  HTTP server: %s", *httpAddr)
	log.Printf("  Metrics server: %s", *metricsAddr)
	log.Printf("  pprof server: %s", *pprofAddr)
	log.Printf("  Capture path: %s", *recordPath)

	// Start pprof server
	go func() {
		log.Printf("Starting pprof server on %s", *pprofAddr)
		if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
			log.Printf("pprof server error: %v", err)
		}
	}()

	// Start metrics server
	go func() {
		log.Printf("Starting metrics server on %s", *metricsAddr)
		if err := s.metrics.StartServer(*metricsAddr); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on %s", *httpAddr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Println("Server started successfully")
	return nil
}

// setupRoutes sets up HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Playback control
	mux.HandleFunc("/start/file", s.handleStartFile)
	mux.HandleFunc("/start/realtime", s.handleStartRealtime)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/status", s.handleStatus)

	// Capture control
	mux.HandleFunc("/record/start", s.handleStartRecording)
	mux.HandleFunc("/record/stop", s.handleStopRecording)

	// Live preview of the current display frame
	mux.Handle("/preview", s.preview)

	// Health check
	mux.HandleFunc("/health", s.handleHealth)
}

// handleStartFile starts looping playback of a raw YUV file.
func (s *Server) handleStartFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "Request body must be {\"path\": ...}", http.StatusBadRequest)
		return
	}

	if err := s.controller.StartFile(req.Path); err != nil {
		http.Error(w, fmt.Sprintf("Failed to start playback: %v", err), http.StatusConflict)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"mode":    "file",
		"path":    req.Path,
	})
}

// handleStartRealtime starts displaying frames from the named pipe.
func (s *Server) handleStartRealtime(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.controller.StartRealtime(); err != nil {
		http.Error(w, fmt.Sprintf("Failed to start realtime: %v", err), http.StatusConflict)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"mode":    "realtime",
	})
}

// handleStop stops the active session, if any.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.controller.Stop()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

// handleStatus reports the controller and capture state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"active":         s.controller.IsActive(),
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"recorder":       s.recorder.GetStatus(),
	}
	if stats, ok := s.controller.PipeStats(); ok {
		status["pipe"] = map[string]interface{}{
			"frames_received": stats.FramesReceived,
			"elapsed_seconds": stats.Elapsed.Seconds(),
			"fps":             stats.FPS,
		}
	}
	json.NewEncoder(w).Encode(status)
}

// handleStartRecording handles start capture request
func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.recorder.Start(); err != nil {
		http.Error(w, fmt.Sprintf("Failed to start recording: %v", err), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"status":  s.recorder.GetStatus(),
	})
}

// handleStopRecording handles stop capture request
func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.recorder.Stop(); err != nil {
		http.Error(w, fmt.Sprintf("Failed to stop recording: %v", err), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"status":  s.recorder.GetStatus(),
	})
}

// handleHealth handles health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"active":    s.controller.IsActive(),
		"recording": s.recorder.IsRecording(),
	})
}

// Shutdown gracefully shuts down the daemon. This is the one place the
// pipe artifact is removed.
func (s *Server) Shutdown() error {
	if err := s.controller.Teardown(); err != nil {
		log.Printf("Error removing pipe: %v", err)
	}
	s.recorder.Close()

	if err := s.sink.Close(); err != nil {
		log.Printf("Error closing display: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
