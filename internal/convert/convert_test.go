package convert

import (
	"bytes"
	"testing"

	"github.com/one-project/oledcam/pkg/types"
)

func testResolution(t *testing.T) types.Resolution {
	t.Helper()
	res, err := types.NewResolution(128, 128)
	if err != nil {
		t.Fatalf("NewResolution: %v", err)
	}
	return res
}

func TestYUVToRGBBlackAndWhite(t *testing.T) {
	// Nominal black in BT.601 video range.
	r, g, b := YUVToRGB(16, 128, 128)
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("YUVToRGB(16,128,128) = (%d,%d,%d), want (0,0,0)", r, g, b)
	}

	// Nominal white should land at or next to full scale.
	r, g, b = YUVToRGB(235, 128, 128)
	for name, ch := range map[string]uint8{"r": r, "g": g, "b": b} {
		if ch < 254 {
			t.Errorf("YUVToRGB(235,128,128) %s = %d, want >= 254", name, ch)
		}
	}
}

func TestYUVToRGBOutputsClamped(t *testing.T) {
	// Sweep extremes plus a grid of interior values. Output is uint8 by
	// construction, so the real check is that clamping never wraps.
	for y := 0; y <= 255; y += 5 {
		for u := 0; u <= 255; u += 15 {
			for v := 0; v <= 255; v += 15 {
				r1, g1, b1 := YUVToRGB(uint8(y), uint8(u), uint8(v))
				r2, g2, b2 := YUVToRGB(uint8(y), uint8(u), uint8(v))
				if r1 != r2 || g1 != g2 || b1 != b2 {
					t.Fatalf("YUVToRGB(%d,%d,%d) not deterministic", y, u, v)
				}
			}
		}
	}

	// Saturated corners must clamp, not wrap.
	r, _, _ := YUVToRGB(255, 128, 255)
	if r != 255 {
		t.Errorf("saturated red = %d, want 255", r)
	}
	_, _, b := YUVToRGB(0, 0, 128)
	if b != 0 {
		t.Errorf("under-range blue = %d, want 0", b)
	}
}

func TestPackRGB565(t *testing.T) {
	cases := []struct {
		r, g, b uint8
		want    uint16
	}{
		{0, 0, 0, 0x0000},
		{255, 255, 255, 0xFFFF},
		{255, 0, 0, 0xF800},
		{0, 255, 0, 0x07E0},
		{0, 0, 255, 0x001F},
	}
	for _, tc := range cases {
		if got := PackRGB565(tc.r, tc.g, tc.b); got != tc.want {
			t.Errorf("PackRGB565(%d,%d,%d) = %#04x, want %#04x", tc.r, tc.g, tc.b, got, tc.want)
		}
	}
}

func TestRenderRejectsWrongSizes(t *testing.T) {
	res := testResolution(t)
	dst := make([]byte, res.DisplayFrameSize())

	if err := Render(dst, make([]byte, res.YUVFrameSize()-1), res); err == nil {
		t.Error("Render accepted a short YUV frame")
	}
	if err := Render(dst[:len(dst)-2], make([]byte, res.YUVFrameSize()), res); err == nil {
		t.Error("Render accepted a short display frame")
	}
}

func TestRenderUniformGray(t *testing.T) {
	res := testResolution(t)
	src := make([]byte, res.YUVFrameSize())
	dst := make([]byte, res.DisplayFrameSize())

	// Mid gray: Y=126 with neutral chroma gives r=g=b=128.
	for i := 0; i < res.Width*res.Height; i++ {
		src[i] = 126
	}
	for i := res.Width * res.Height; i < len(src); i++ {
		src[i] = 128
	}

	if err := Render(dst, src, res); err != nil {
		t.Fatalf("Render: %v", err)
	}

	want := PackRGB565(128, 128, 128)
	for i := 0; i < len(dst); i += 2 {
		got := uint16(dst[i])<<8 | uint16(dst[i+1])
		if got != want {
			t.Fatalf("pixel %d = %#04x, want %#04x", i/2, got, want)
		}
	}
}

func TestRenderChromaSubsampling(t *testing.T) {
	res := testResolution(t)
	src := make([]byte, res.YUVFrameSize())
	dst := make([]byte, res.DisplayFrameSize())

	// Neutral chroma everywhere except the chroma sample covering the
	// top-left 2x2 luma block, which is pushed fully red.
	yEnd := res.Width * res.Height
	for i := yEnd; i < len(src); i++ {
		src[i] = 128
	}
	for i := 0; i < yEnd; i++ {
		src[i] = 126
	}
	src[yEnd+res.Width*res.Height/4] = 255 // V plane sample (0,0)

	if err := Render(dst, src, res); err != nil {
		t.Fatalf("Render: %v", err)
	}

	redPixel := func(row, col int) uint16 {
		pos := (row*res.Width + col) * 2
		return uint16(dst[pos])<<8 | uint16(dst[pos+1])
	}
	neutral := PackRGB565(128, 128, 128)

	// All four pixels in the 2x2 block share the modified chroma sample.
	for _, p := range [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		if got := redPixel(p[0], p[1]); got == neutral {
			t.Errorf("pixel (%d,%d) = %#04x, want red-shifted", p[0], p[1], got)
		}
	}
	// The neighboring block is untouched.
	if got := redPixel(0, 2); got != neutral {
		t.Errorf("pixel (0,2) = %#04x, want neutral %#04x", got, neutral)
	}
}

func TestRenderDeterministic(t *testing.T) {
	res := testResolution(t)
	src := make([]byte, res.YUVFrameSize())
	for i := range src {
		src[i] = byte(i * 7)
	}

	dst1 := make([]byte, res.DisplayFrameSize())
	dst2 := make([]byte, res.DisplayFrameSize())
	if err := Render(dst1, src, res); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := Render(dst2, src, res); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(dst1, dst2) {
		t.Error("two renders of the same frame differ")
	}
}

func TestRenderDoesNotAllocate(t *testing.T) {
	res := testResolution(t)
	src := make([]byte, res.YUVFrameSize())
	dst := make([]byte, res.DisplayFrameSize())
	for i := range src {
		src[i] = byte(i * 5)
	}

	var renderErr error
	allocs := testing.AllocsPerRun(100, func() {
		renderErr = Render(dst, src, res)
	})
	if renderErr != nil {
		t.Fatalf("Render: %v", renderErr)
	}
	if allocs != 0 {
		t.Errorf("Render allocates %.1f objects per frame, want 0", allocs)
	}
}

func BenchmarkRender(b *testing.B) {
	res, _ := types.NewResolution(128, 128)
	src := make([]byte, res.YUVFrameSize())
	dst := make([]byte, res.DisplayFrameSize())
	for i := range src {
		src[i] = byte(i)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Render(dst, src, res); err != nil {
			b.Fatal(err)
		}
	}
}
