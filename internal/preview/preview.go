// Package preview serves the most recently displayed frame as a PNG over
// HTTP, scaled up from panel resolution so a 128x128 frame is inspectable
// in a browser. Advisory only: it observes the pipeline and never feeds
// back into it.
package preview

import (
	"image"
	"image/png"
	"net/http"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/one-project/oledcam/internal/logger"
	"github.com/one-project/oledcam/pkg/types"
)

// Server holds a copy of the last RGB565 frame submitted to the sink.
type Server struct {
	res   types.Resolution
	scale int

	mu    sync.RWMutex
	frame []byte
	seen  bool
}

// NewServer allocates the snapshot buffer once. scale multiplies the
// output dimensions; values below 1 are treated as 1.
func NewServer(res types.Resolution, scale int) *Server {
	if scale < 1 {
		scale = 1
	}
	return &Server{
		res:   res,
		scale: scale,
		frame: make([]byte, res.DisplayFrameSize()),
	}
}

// Tap records a display frame. Called from the session loop after each
// sink submission; the frame is copied so the pool slot can be reused.
func (s *Server) Tap(frame []byte) {
	if len(frame) != len(s.frame) {
		return
	}
	s.mu.Lock()
	copy(s.frame, frame)
	s.seen = true
	s.mu.Unlock()
}

// rgba decodes the RGB565 snapshot into an image, expanding each channel
// to 8 bits.
func (s *Server) rgba() (*image.RGBA, bool) {
	img := image.NewRGBA(image.Rect(0, 0, s.res.Width, s.res.Height))

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.seen {
		return nil, false
	}

	for i := 0; i < len(s.frame); i += 2 {
		p := uint16(s.frame[i])<<8 | uint16(s.frame[i+1])
		r := uint8(p >> 11)
		g := uint8(p >> 5 & 0x3F)
		b := uint8(p & 0x1F)

		o := i * 2
		img.Pix[o] = r<<3 | r>>2
		img.Pix[o+1] = g<<2 | g>>4
		img.Pix[o+2] = b<<3 | b>>2
		img.Pix[o+3] = 0xFF
	}
	return img, true
}

// ServeHTTP renders the snapshot as a scaled PNG.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	src, ok := s.rgba()
	if !ok {
		http.Error(w, "no frame displayed yet", http.StatusNotFound)
		return
	}

	out := src
	if s.scale > 1 {
		out = image.NewRGBA(image.Rect(0, 0, s.res.Width*s.scale, s.res.Height*s.scale))
		xdraw.NearestNeighbor.Scale(out, out.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, out); err != nil {
		logger.Warn("Preview", "PNG encode: %v", err)
	}
}
