// Package recorder captures the raw YUV420 frames of a live session to
// disk. The output is headerless back-to-back frames, so a capture can be
// replayed later through the file playback path.
package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/one-project/oledcam/internal/logger"
)

// Recorder writes frames on a background goroutine so the session loop
// never blocks on disk I/O. Frames that cannot be queued are dropped and
// counted.
type Recorder struct {
	basePath  string
	frameSize int

	mu           sync.RWMutex
	file         *os.File
	filename     string
	recording    bool
	frameCount   uint64
	droppedCount uint64
	bytesWritten uint64
	startTime    time.Time

	frameChan chan []byte
	wg        sync.WaitGroup

	// bufPool recycles frame copies so steady-state recording does not
	// allocate per frame.
	bufPool sync.Pool
}

// New creates a recorder writing captures under basePath.
func New(basePath string, frameSize int) *Recorder {
	return &Recorder{
		basePath:  basePath,
		frameSize: frameSize,
		frameChan: make(chan []byte, 60),
		bufPool: sync.Pool{
			New: func() any { return make([]byte, frameSize) },
		},
	}
}

// Start begins a new capture file. Fails if already recording.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return fmt.Errorf("already recording")
	}

	if err := os.MkdirAll(r.basePath, 0755); err != nil {
		return fmt.Errorf("create capture directory: %w", err)
	}

	filename := fmt.Sprintf("capture_%s.yuv", time.Now().Format("20060102_150405"))
	file, err := os.Create(filepath.Join(r.basePath, filename))
	if err != nil {
		return fmt.Errorf("create capture file: %w", err)
	}

	r.file = file
	r.filename = filename
	r.recording = true
	r.frameCount = 0
	r.droppedCount = 0
	r.bytesWritten = 0
	r.startTime = time.Now()

	r.wg.Add(1)
	go r.writeFrames()

	logger.Info("Recorder", "Recording to %s", filename)
	return nil
}

// Stop ends the capture, drains queued frames and closes the file.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return fmt.Errorf("not recording")
	}
	r.recording = false
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		if err := r.file.Sync(); err != nil {
			return fmt.Errorf("sync capture file: %w", err)
		}
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close capture file: %w", err)
		}
		r.file = nil
	}
	logger.Info("Recorder", "Recording stopped: %s (%d frames, %d dropped)",
		r.filename, r.frameCount, r.droppedCount)
	return nil
}

// SendFrame queues a copy of one YUV frame, non-blocking. Returns whether
// the frame was accepted.
func (r *Recorder) SendFrame(frame []byte) bool {
	r.mu.RLock()
	recording := r.recording
	r.mu.RUnlock()

	if !recording || len(frame) != r.frameSize {
		return false
	}

	buf := r.bufPool.Get().([]byte)
	copy(buf, frame)

	select {
	case r.frameChan <- buf:
		return true
	default:
		r.bufPool.Put(buf)
		r.mu.Lock()
		r.droppedCount++
		r.mu.Unlock()
		return false
	}
}

func (r *Recorder) writeFrames() {
	defer r.wg.Done()

	for {
		r.mu.RLock()
		recording := r.recording
		r.mu.RUnlock()

		if !recording {
			// Drain whatever is still queued.
			for {
				select {
				case buf := <-r.frameChan:
					r.writeFrame(buf)
				default:
					return
				}
			}
		}

		select {
		case buf := <-r.frameChan:
			r.writeFrame(buf)
		case <-time.After(100 * time.Millisecond):
			// Re-check recording state.
		}
	}
}

func (r *Recorder) writeFrame(buf []byte) {
	defer r.bufPool.Put(buf)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}

	n, err := r.file.Write(buf)
	if err != nil {
		logger.Warn("Recorder", "Write failed: %v", err)
		return
	}
	r.bytesWritten += uint64(n)
	r.frameCount++
}

// IsRecording returns true while a capture is open.
func (r *Recorder) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// Status holds a capture progress snapshot.
type Status struct {
	Recording    bool   `json:"recording"`
	Filename     string `json:"filename"`
	FrameCount   uint64 `json:"frame_count"`
	DroppedCount uint64 `json:"dropped_count"`
	BytesWritten uint64 `json:"bytes_written"`
	DurationMs   int64  `json:"duration_ms"`
}

// GetStatus returns the current capture status.
func (r *Recorder) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var duration time.Duration
	if r.recording {
		duration = time.Since(r.startTime)
	}
	return Status{
		Recording:    r.recording,
		Filename:     r.filename,
		FrameCount:   r.frameCount,
		DroppedCount: r.droppedCount,
		BytesWritten: r.bytesWritten,
		DurationMs:   duration.Milliseconds(),
	}
}

// Close stops any active capture.
func (r *Recorder) Close() error {
	if r.IsRecording() {
		return r.Stop()
	}
	return nil
}
