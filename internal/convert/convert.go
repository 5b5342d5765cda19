// Package convert implements the YUV420 to RGB565 colorspace conversion
// used on the per-frame render path. Everything here is pure and
// allocation-free: one full-frame render must fit inside the frame budget,
// so the converter works directly on caller-owned buffers.
package convert

import (
	"fmt"

	"github.com/one-project/oledcam/pkg/types"
)

// YUVToRGB converts a single YUV pixel to 8-bit RGB using the BT.601
// fixed-point formula. Intermediate math matches integer truncation via
// arithmetic shift, with results clamped to [0, 255].
func YUVToRGB(y, u, v uint8) (r, g, b uint8) {
	c := int(y) - 16
	d := int(u) - 128
	e := int(v) - 128

	return clamp8((298*c + 409*e + 128) >> 8),
		clamp8((298*c - 100*d - 208*e + 128) >> 8),
		clamp8((298*c + 516*d + 128) >> 8)
}

func clamp8(x int) uint8 {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

// PackRGB565 packs 8-bit RGB into a 16-bit RGB565 value:
// 5 bits red, 6 bits green, 5 bits blue.
func PackRGB565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}

// Render converts one planar YUV420 frame into RGB565, writing each pixel
// as two bytes, high byte first, at pixel_index*2 in dst. The U and V
// planes are quarter resolution; chroma is upsampled nearest-neighbor, one
// chroma sample per 2x2 luma block.
//
// src must be exactly res.YUVFrameSize() bytes and dst exactly
// res.DisplayFrameSize() bytes; anything else is rejected before any pixel
// is touched.
func Render(dst, src []byte, res types.Resolution) error {
	if len(src) != res.YUVFrameSize() {
		return fmt.Errorf("yuv frame is %d bytes, want %d for %s", len(src), res.YUVFrameSize(), res)
	}
	if len(dst) != res.DisplayFrameSize() {
		return fmt.Errorf("display frame is %d bytes, want %d for %s", len(dst), res.DisplayFrameSize(), res)
	}

	width, height := res.Width, res.Height
	yPlane := src[:width*height]
	uPlane := src[width*height : width*height+width*height/4]
	vPlane := src[width*height+width*height/4:]

	for row := 0; row < height; row++ {
		uvRow := (row / 2) * (width / 2)
		for col := 0; col < width; col++ {
			yIndex := row*width + col
			uvIndex := uvRow + col/2

			r, g, b := YUVToRGB(yPlane[yIndex], uPlane[uvIndex], vPlane[uvIndex])
			color := PackRGB565(r, g, b)

			pos := yIndex * 2
			dst[pos] = byte(color >> 8)
			dst[pos+1] = byte(color)
		}
	}
	return nil
}
