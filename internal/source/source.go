// Package source provides the frame producers a display session pulls
// from: looping playback of a raw YUV420 file, or real-time ingestion from
// a named pipe fed by an external capture process.
package source

import "errors"

var (
	// ErrStreamClosed means the producer closed its end of the stream
	// before a full frame was accumulated. Terminal for the session.
	ErrStreamClosed = errors.New("source: stream closed by producer")

	// ErrShortFrame means the backing file cannot supply even one full
	// frame. Terminal for the session.
	ErrShortFrame = errors.New("source: fewer bytes than one frame available")

	// ErrInterrupted means a read was abandoned because the session was
	// asked to stop while the producer was stalled.
	ErrInterrupted = errors.New("source: read interrupted by stop request")
)

// Source produces a lazy, possibly infinite sequence of complete raw
// YUV420 frames. NextFrame fills buf, which must be exactly one frame
// long, and returns nil only when every byte of it is fresh frame data.
// Any non-nil error is terminal for the session.
type Source interface {
	NextFrame(buf []byte) error
	Close() error
}
