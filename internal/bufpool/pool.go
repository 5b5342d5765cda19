// Package bufpool provides the double-buffered frame storage shared by a
// display session. All four buffers are allocated once when the pool is
// created and reused for every frame; nothing on the per-frame path
// allocates.
package bufpool

import "github.com/one-project/oledcam/pkg/types"

// Pool owns two YUV-sized buffers and two display-sized buffers. The
// "active" and "next" roles swap each frame so the transfer of frame N can
// overlap the read of frame N+1. The pool is not safe for concurrent use;
// only the session loop touches it.
type Pool struct {
	yuv     [2][]byte
	display [2][]byte
	active  int
}

// New allocates all slots up front for the given resolution.
func New(res types.Resolution) *Pool {
	p := &Pool{}
	for i := range p.yuv {
		p.yuv[i] = make([]byte, res.YUVFrameSize())
		p.display[i] = make([]byte, res.DisplayFrameSize())
	}
	return p
}

// YUV returns the active YUV slot, the frame currently being converted
// and displayed.
func (p *Pool) YUV() []byte {
	return p.yuv[p.active]
}

// NextYUV returns the back YUV slot, the write target for the next frame
// read while the active one is on its way to the panel.
func (p *Pool) NextYUV() []byte {
	return p.yuv[1-p.active]
}

// Display returns the active display slot, the RGB565 target for the
// current frame's conversion.
func (p *Pool) Display() []byte {
	return p.display[p.active]
}

// Swap flips the active and next roles. Called exactly once per completed
// frame, from the session loop only.
func (p *Pool) Swap() {
	p.active = 1 - p.active
}
