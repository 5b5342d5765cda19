package types

import "fmt"

// Default geometry for the Waveshare 1.5" RGB OLED (SSD1351, SPI).
const (
	DefaultWidth  = 128
	DefaultHeight = 128
	DefaultFPS    = 12
)

// DefaultPipePath is the well-known FIFO the capture process writes raw
// YUV420 frames into during real-time sessions.
const DefaultPipePath = "/tmp/stream_pipe"

// Resolution describes the fixed display geometry. Both frame sizes are
// derived from it and never change while a session is running.
type Resolution struct {
	Width  int
	Height int
}

// NewResolution validates the geometry. YUV420 chroma subsampling requires
// even dimensions.
func NewResolution(width, height int) (Resolution, error) {
	if width <= 0 || height <= 0 {
		return Resolution{}, fmt.Errorf("invalid resolution %dx%d", width, height)
	}
	if width%2 != 0 || height%2 != 0 {
		return Resolution{}, fmt.Errorf("resolution %dx%d not even: YUV420 needs 2x2 chroma blocks", width, height)
	}
	return Resolution{Width: width, Height: height}, nil
}

// YUVFrameSize is the byte length of one planar YUV420 frame:
// a full-resolution Y plane plus quarter-resolution U and V planes.
func (r Resolution) YUVFrameSize() int {
	return r.Width * r.Height * 3 / 2
}

// DisplayFrameSize is the byte length of one RGB565 frame, two bytes per
// pixel, high byte first.
func (r Resolution) DisplayFrameSize() int {
	return r.Width * r.Height * 2
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}
