package oled

import (
	"fmt"

	"github.com/one-project/oledcam/pkg/types"
)

// Null is a sink for machines without the panel attached. It validates
// frame sizes and discards the pixels, so the rest of the pipeline
// (conversion, pacing, preview) behaves exactly as it does on hardware.
type Null struct {
	res types.Resolution
}

// NewNull returns a size-checking no-op sink.
func NewNull(res types.Resolution) *Null {
	return &Null{res: res}
}

func (n *Null) Display(frame []byte) error {
	if len(frame) != n.res.DisplayFrameSize() {
		return fmt.Errorf("display frame is %d bytes, want %d", len(frame), n.res.DisplayFrameSize())
	}
	return nil
}

func (n *Null) Close() error {
	return nil
}
