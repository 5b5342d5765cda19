package preview

import (
	"image/png"
	"net/http/httptest"
	"testing"

	"github.com/one-project/oledcam/pkg/types"
)

func TestServeBeforeAnyFrame(t *testing.T) {
	res, _ := types.NewResolution(16, 16)
	s := NewServer(res, 1)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/preview", nil))
	if rec.Code != 404 {
		t.Errorf("status = %d before any frame, want 404", rec.Code)
	}
}

func TestServeScaledSnapshot(t *testing.T) {
	res, _ := types.NewResolution(16, 16)
	s := NewServer(res, 4)

	// Solid red frame: RGB565 0xF800 big-endian.
	frame := make([]byte, res.DisplayFrameSize())
	for i := 0; i < len(frame); i += 2 {
		frame[i] = 0xF8
		frame[i+1] = 0x00
	}
	s.Tap(frame)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/preview", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 64 {
		t.Errorf("scaled image is %dx%d, want 64x64", bounds.Dx(), bounds.Dy())
	}

	r, g, b, _ := img.At(32, 32).RGBA()
	if r>>8 != 0xFF || g != 0 || b != 0 {
		t.Errorf("center pixel = (%d,%d,%d), want pure red", r>>8, g>>8, b>>8)
	}
}

func TestTapIgnoresWrongSize(t *testing.T) {
	res, _ := types.NewResolution(16, 16)
	s := NewServer(res, 1)

	s.Tap(make([]byte, 3))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/preview", nil))
	if rec.Code != 404 {
		t.Errorf("undersized tap was accepted as a frame (status %d)", rec.Code)
	}
}
