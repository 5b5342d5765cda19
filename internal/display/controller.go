// Package display owns the session lifecycle: it pulls YUV420 frames from
// a source, converts them to RGB565, and drives the panel at a fixed frame
// rate on a dedicated background goroutine.
package display

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/one-project/oledcam/internal/bufpool"
	"github.com/one-project/oledcam/internal/convert"
	"github.com/one-project/oledcam/internal/logger"
	"github.com/one-project/oledcam/internal/metrics"
	"github.com/one-project/oledcam/internal/recorder"
	"github.com/one-project/oledcam/internal/source"
	"github.com/one-project/oledcam/pkg/types"
)

// ErrAlreadyActive is returned by Start variants while a session is
// running. The first session is left undisturbed.
var ErrAlreadyActive = errors.New("display: session already active")

// Sink accepts one fully converted RGB565 frame and performs the blocking
// hardware transfer.
type Sink interface {
	Display(frame []byte) error
	Close() error
}

// FrameTap observes each display frame after it has been submitted to the
// sink. Advisory only; a tap must copy what it wants to keep.
type FrameTap interface {
	Tap(frame []byte)
}

// Controller is the display session state machine. It is Idle or Running;
// at most one session runs at a time. Start, Stop and IsActive are safe to
// call from any goroutine concurrently with the session loop.
type Controller struct {
	res      types.Resolution
	fps      int
	period   time.Duration
	sink     Sink
	met      *metrics.Metrics
	pipePath string
	tap      FrameTap
	rec      *recorder.Recorder

	pool *bufpool.Pool

	mu     sync.Mutex // serializes Start and Stop transitions
	active atomic.Bool
	wg     sync.WaitGroup

	pipe      *source.PipeSource // stats of the current/last real-time session
	pipeOwner *source.PipeSource // first source that created the FIFO, if any
}

// NewController allocates the frame buffer pool once for the controller's
// lifetime and wires the sink and metrics.
func NewController(res types.Resolution, fps int, pipePath string, sink Sink, met *metrics.Metrics) (*Controller, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", fps)
	}
	return &Controller{
		res:      res,
		fps:      fps,
		period:   time.Second / time.Duration(fps),
		sink:     sink,
		met:      met,
		pipePath: pipePath,
		pool:     bufpool.New(res),
	}, nil
}

// SetTap attaches a frame tap. Must be called before the first Start.
func (c *Controller) SetTap(tap FrameTap) {
	c.tap = tap
}

// SetRecorder attaches a capture recorder fed with every source frame
// while it is recording. Must be called before the first Start.
func (c *Controller) SetRecorder(rec *recorder.Recorder) {
	c.rec = rec
}

// StartFile begins looping playback of a raw YUV420 file. Fails with
// ErrAlreadyActive while Running, or with the file open error, in which
// case the controller stays Idle.
func (c *Controller) StartFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active.Load() {
		return ErrAlreadyActive
	}

	src, err := source.OpenFile(path, c.res.YUVFrameSize())
	if err != nil {
		return err
	}

	logger.Info("Display", "Starting file playback: %s (%s @ %d FPS)", path, c.res, c.fps)
	c.met.FileSessions.Add(1)
	c.begin(src, nil)
	return nil
}

// StartRealtime begins a real-time session reading from the named pipe,
// creating the FIFO if absent. Fails with ErrAlreadyActive while Running,
// or with the pipe open/creation error, leaving the controller Idle.
func (c *Controller) StartRealtime() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active.Load() {
		return ErrAlreadyActive
	}

	// The accumulation loop re-checks this between chunks so Stop()
	// interrupts a stalled read.
	stop := func() bool { return !c.active.Load() }
	src, err := source.OpenPipe(c.pipePath, c.res.YUVFrameSize(), stop)
	if err != nil {
		return err
	}

	logger.Info("Display", "Starting real-time display from %s (%s @ %d FPS)", c.pipePath, c.res, c.fps)
	if src.Created() && c.pipeOwner == nil {
		c.pipeOwner = src
	}
	c.met.PipeSessions.Add(1)
	c.begin(src, src)
	return nil
}

// begin transitions to Running and spawns the session goroutine. Caller
// holds c.mu and has verified the controller is Idle. A file session
// leaves c.pipe alone so stats of the last real-time session survive.
func (c *Controller) begin(src source.Source, pipe *source.PipeSource) {
	if pipe != nil {
		c.pipe = pipe
	}
	c.active.Store(true)
	c.met.SessionActive.Store(1)
	c.wg.Add(1)
	go c.run(src, pipe)
}

// Stop requests a cooperative shutdown and blocks until the session
// goroutine has fully exited. No frames are rendered after Stop returns.
// No-op when Idle, and safe after the loop has already exited on its own.
// The FIFO stays on disk so a producer survives session restarts.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active.Store(false)
	c.wg.Wait()
}

// Teardown stops any running session and removes the FIFO if this
// controller created it. Process shutdown only; in between sessions the
// pipe artifact must stay available to producers.
func (c *Controller) Teardown() error {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeOwner == nil {
		return nil
	}
	owner := c.pipeOwner
	c.pipeOwner = nil
	return owner.RemoveArtifact()
}

// IsActive reports whether a session is currently running.
func (c *Controller) IsActive() bool {
	return c.active.Load()
}

// PipeStats returns throughput diagnostics for the current or most recent
// real-time session. ok is false if no real-time session has run.
func (c *Controller) PipeStats() (stats source.PipeStats, ok bool) {
	c.mu.Lock()
	pipe := c.pipe
	c.mu.Unlock()

	if pipe == nil {
		return source.PipeStats{}, false
	}
	return pipe.Stats(), true
}

// run is the session loop. Each iteration pulls one frame into the pool's
// next YUV slot, converts it into the display slot, submits it to the sink
// and swaps buffer roles, then sleeps out the remainder of the frame
// period. Overruns proceed immediately: the rate degrades, frames are
// never skipped and there is no catch-up burst.
func (c *Controller) run(src source.Source, pipe *source.PipeSource) {
	defer c.wg.Done()

	frames := 0
	for c.active.Load() {
		start := time.Now()

		if err := src.NextFrame(c.pool.NextYUV()); err != nil {
			c.logSourceExit(err, frames)
			break
		}
		c.met.FramesRead.Add(1)
		if c.rec != nil {
			c.rec.SendFrame(c.pool.NextYUV())
		}

		convStart := time.Now()
		if err := convert.Render(c.pool.Display(), c.pool.NextYUV(), c.res); err != nil {
			logger.Error("Display", "Conversion failed: %v", err)
			c.met.ConvertErrors.Add(1)
			break
		}

		dispStart := time.Now()
		if err := c.sink.Display(c.pool.Display()); err != nil {
			logger.Error("Display", "Display transfer failed: %v", err)
			c.met.DisplayErrors.Add(1)
			break
		}
		if c.tap != nil {
			c.tap.Tap(c.pool.Display())
		}
		c.pool.Swap()

		frames++
		c.met.FramesRendered.Add(1)
		done := time.Now()
		c.met.ObserveFrame(dispStart.Sub(convStart), done.Sub(dispStart), done.Sub(start))
		if pipe != nil {
			c.met.SetPipeFPS(pipe.Stats().FPS)
		}

		if elapsed := time.Since(start); elapsed < c.period {
			time.Sleep(c.period - elapsed)
		} else {
			c.met.Overruns.Add(1)
		}
	}

	if err := src.Close(); err != nil {
		logger.Warn("Display", "Source close: %v", err)
	}

	logger.Info("Display", "Session ended after %d frames", frames)
	c.met.SessionActive.Store(0)
	// Last: a subsequent Start must not observe Idle until the pool and
	// source are fully released.
	c.active.Store(false)
}

func (c *Controller) logSourceExit(err error, frames int) {
	switch {
	case errors.Is(err, source.ErrInterrupted):
		logger.Debug("Display", "Read interrupted by stop after %d frames", frames)
	case errors.Is(err, source.ErrStreamClosed):
		logger.Info("Display", "Producer closed the stream after %d frames", frames)
	default:
		logger.Warn("Display", "Source error after %d frames: %v", frames, err)
		c.met.ReadErrors.Add(1)
	}
}
