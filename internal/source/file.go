package source

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// FileSource plays back a file of back-to-back raw YUV420 frames. A short
// read, including end of file, rewinds to the beginning: playback loops
// forever and never surfaces a terminal end to the caller. The one
// exception is a file too small to hold a single frame, which fails the
// first read with ErrShortFrame.
type FileSource struct {
	file      *os.File
	frameSize int
}

// OpenFile opens a YUV420 video file for looping playback. A nonexistent
// path fails here, before any session starts.
func OpenFile(path string, frameSize int) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open yuv file: %w", err)
	}
	return &FileSource{file: f, frameSize: frameSize}, nil
}

// NextFrame reads exactly one frame, rewinding and rereading at end of
// file so an N-frame file yields frames 0..N-1 indefinitely.
func (s *FileSource) NextFrame(buf []byte) error {
	if len(buf) != s.frameSize {
		return fmt.Errorf("frame buffer is %d bytes, want %d", len(buf), s.frameSize)
	}

	for attempt := 0; attempt < 2; attempt++ {
		_, err := io.ReadFull(s.file, buf)
		if err == nil {
			return nil
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("read yuv file: %w", err)
		}
		// End of file or trailing partial frame: loop back to the start.
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind yuv file: %w", err)
		}
	}

	// A fresh read from offset zero still came up short: the file holds
	// less than one frame.
	return ErrShortFrame
}

// Close closes the backing file.
func (s *FileSource) Close() error {
	return s.file.Close()
}
