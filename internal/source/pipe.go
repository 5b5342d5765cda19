package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/one-project/oledcam/internal/logger"
)

const (
	// readSlice bounds how long a blocked pipe read runs before the stop
	// predicate is re-checked, so Stop() terminates a stalled session
	// promptly.
	readSlice = 200 * time.Millisecond

	// producerPoll is the wait between probes while no producer has
	// opened the write end yet.
	producerPoll = 20 * time.Millisecond

	// statsLogInterval is how many frames pass between throughput log
	// lines.
	statsLogInterval = 300
)

// PipeStats is an advisory throughput snapshot. It never feeds back into
// pacing or correctness.
type PipeStats struct {
	FramesReceived uint64
	Elapsed        time.Duration
	FPS            float64
}

// PipeSource reads raw YUV420 frames from a named pipe written by an
// external capture process. Bytes arrive in arbitrary chunk sizes; a frame
// is surfaced only once exactly frameSize bytes have accumulated. A closed
// write end is terminal.
type PipeSource struct {
	pipe      *os.File
	path      string
	frameSize int
	stop      func() bool
	created   bool

	connected bool // producer has opened the write end at least once

	mu        sync.Mutex
	frames    uint64
	startTime time.Time
}

// OpenPipe opens the FIFO at path for reading, creating it with permissive
// mode if absent. The source remembers whether it created the FIFO; only
// the creator may remove it, and only via RemoveArtifact at final
// teardown. The stop predicate is consulted between read chunks so a
// stalled read never outlives a stop request.
func OpenPipe(path string, frameSize int, stop func() bool) (*PipeSource, error) {
	created := false
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat fifo: %w", err)
		}
		if err := unix.Mkfifo(path, 0666); err != nil {
			return nil, fmt.Errorf("create fifo %s: %w", path, err)
		}
		created = true
	}

	// Non-blocking open so we are not stuck waiting for a producer, and
	// so the runtime poller gives us read deadlines.
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if created {
			os.Remove(path)
		}
		return nil, fmt.Errorf("open fifo %s: %w", path, err)
	}

	if stop == nil {
		stop = func() bool { return false }
	}

	logger.Info("PipeSource", "Opened pipe %s (created=%v)", path, created)
	return &PipeSource{
		pipe:      os.NewFile(uintptr(fd), path),
		path:      path,
		frameSize: frameSize,
		stop:      stop,
		created:   created,
		startTime: time.Now(),
	}, nil
}

// NextFrame accumulates reads until buf holds exactly one frame. It blocks
// while the producer is slow, waits for a producer that has not connected
// yet, and returns ErrStreamClosed the moment the write end closes with a
// frame still incomplete. A partial frame is never surfaced.
func (s *PipeSource) NextFrame(buf []byte) error {
	if len(buf) != s.frameSize {
		return fmt.Errorf("frame buffer is %d bytes, want %d", len(buf), s.frameSize)
	}

	total := 0
	for total < s.frameSize {
		if s.stop() {
			return ErrInterrupted
		}

		if err := s.pipe.SetReadDeadline(time.Now().Add(readSlice)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		n, err := s.pipe.Read(buf[total:])
		if n > 0 {
			s.connected = true
			total += n
		}
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			// Producer stalled mid-frame; loop to re-check stop.
		case errors.Is(err, io.EOF):
			if !s.connected && total == 0 {
				// No producer has opened the write end yet. An empty
				// FIFO with no writer reads as EOF, so wait.
				time.Sleep(producerPoll)
				continue
			}
			logger.Info("PipeSource", "Pipe closed by writer (%d/%d bytes of current frame)", total, s.frameSize)
			return ErrStreamClosed
		default:
			return fmt.Errorf("read fifo: %w", err)
		}
	}

	s.recordFrame()
	return nil
}

func (s *PipeSource) recordFrame() {
	s.mu.Lock()
	s.frames++
	frames := s.frames
	elapsed := time.Since(s.startTime)
	s.mu.Unlock()

	if frames%statsLogInterval == 0 && elapsed > 0 {
		logger.Info("PipeSource", "Received %d frames in %.1f seconds (%.2f FPS)",
			frames, elapsed.Seconds(), float64(frames)/elapsed.Seconds())
	}
}

// Stats returns a snapshot of throughput diagnostics.
func (s *PipeSource) Stats() PipeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.startTime)
	fps := 0.0
	if elapsed > 0 {
		fps = float64(s.frames) / elapsed.Seconds()
	}
	return PipeStats{FramesReceived: s.frames, Elapsed: elapsed, FPS: fps}
}

// Created reports whether this source created the FIFO (and therefore owns
// its removal).
func (s *PipeSource) Created() bool {
	return s.created
}

// Close closes the read end only. The FIFO stays on disk so a producer
// holding an open write fd keeps its connection across session restarts;
// the artifact is unlinked by RemoveArtifact.
func (s *PipeSource) Close() error {
	return s.pipe.Close()
}

// RemoveArtifact unlinks the FIFO if this source created it. Final
// teardown only; a source that opened a pre-existing FIFO never removes
// it.
func (s *PipeSource) RemoveArtifact() error {
	if !s.created {
		return nil
	}
	return os.Remove(s.path)
}
