package source

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
	"time"
)

// testPalette yields distinguishable opaque colors per frame index.
var testPalette = color.Palette{
	color.RGBA{0, 0, 0, 255},
	color.RGBA{255, 0, 0, 255},
	color.RGBA{0, 255, 0, 255},
	color.RGBA{0, 0, 255, 255},
	color.RGBA{255, 255, 0, 255},
	color.RGBA{255, 0, 255, 255},
}

// encodeGIF builds an animated GIF where frame i is a w x h rect filled with
// testPalette[i%len] and the given delays in hundredths of a second.
func encodeGIF(t *testing.T, w, h int, delays []int, disposal []byte) []byte {
	t.Helper()
	g := &gif.GIF{
		Config: image.Config{Width: w, Height: h},
	}
	for i := range delays {
		pal := image.NewPaletted(image.Rect(0, 0, w, h), testPalette)
		ci := uint8(i%len(testPalette)) //nolint:gosec // bounded by palette size
		for p := range pal.Pix {
			pal.Pix[p] = ci
		}
		g.Image = append(g.Image, pal)
	}
	g.Delay = delays
	g.Disposal = disposal

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// TestNewClassification verifies the construction error taxonomy.
func TestNewClassification(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"garbage", []byte("definitely not an image"), ErrNotDecodable},
		{"empty", nil, ErrNotDecodable},
		{"static png", nil, ErrUnsupportedContainer}, // filled below
		{"single frame gif", nil, ErrSingleFrame},    // filled below
		{"gif without image data", nil, ErrNotDecodable},
	}
	tests[2].data = encodePNG(t)
	tests[3].data = encodeGIF(t, 4, 4, []int{10}, nil)
	// A header plus trailer with no frames in between; EncodeAll cannot
	// produce one, so the bytes are spelled out.
	tests[4].data = []byte("GIF89a\x04\x00\x04\x00\x00\x00\x00\x3b")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestNewValid verifies basic container metadata on a valid animation.
func TestNewValid(t *testing.T) {
	s, err := New(encodeGIF(t, 6, 4, []int{10, 20, 30}, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.FrameCount(); got != 3 {
		t.Errorf("FrameCount() = %d, want 3", got)
	}
	if s.Width() != 6 || s.Height() != 4 {
		t.Errorf("dims = %dx%d, want 6x4", s.Width(), s.Height())
	}
	if got := s.TotalDuration(); got != 600*time.Millisecond {
		t.Errorf("TotalDuration() = %v, want 600ms", got)
	}
}

// TestResolveDelaySeconds verifies the per-frame fallback and clamp chain.
func TestResolveDelaySeconds(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		prev float64
		want float64
	}{
		{"normal delay kept", 0.05, 0.2, 0.05},
		{"missing inherits previous", 0, 0.07, 0.07},
		{"missing first frame gets default", 0, 0, 0.1},
		{"below minimum clamps to default", 0.01, 0.2, 0.1},
		{"at minimum kept", 0.02, 0.2, 0.02},
		{"just above minimum kept", 0.025, 0.2, 0.025},
		{"inherited below minimum clamps", 0, 0.01, 0.1},
		{"negative treated as missing", -1, 0.05, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveDelaySeconds(tt.raw, tt.prev)
			if got != tt.want {
				t.Errorf("resolveDelaySeconds(%v, %v) = %v, want %v",
					tt.raw, tt.prev, got, tt.want)
			}
		})
	}
}

// TestResolveDelays verifies inheritance across a table: a frame with no
// delay metadata takes the previous frame's resolved delay, and the first
// frame falls back to the 100ms default.
func TestResolveDelays(t *testing.T) {
	// Frame delays in centiseconds; 0 = unspecified.
	got := resolveDelays([]int{0, 5, 0, 3, 0})
	want := []time.Duration{
		100 * time.Millisecond, // default
		50 * time.Millisecond,
		50 * time.Millisecond, // inherited from frame 1
		30 * time.Millisecond,
		30 * time.Millisecond, // inherited from frame 3
	}
	if len(got) != len(want) {
		t.Fatalf("resolveDelays returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// TestComposeFrames verifies each composed frame shows its own fill color.
func TestComposeFrames(t *testing.T) {
	s, err := New(encodeGIF(t, 4, 4, []int{10, 10, 10}, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := range 3 {
		img, err := s.Compose(i)
		if err != nil {
			t.Fatalf("Compose(%d): %v", i, err)
		}
		wr, wg, wb, _ := testPalette[i].RGBA()
		gr, gg, gb, _ := img.At(2, 2).RGBA()
		if gr != wr || gg != wg || gb != wb {
			t.Errorf("frame %d pixel = (%d,%d,%d), want (%d,%d,%d)",
				i, gr, gg, gb, wr, wg, wb)
		}
	}
}

// TestComposeBackwardSeek verifies random access works after playing
// forward: seeking back to an earlier index recomposes correctly.
func TestComposeBackwardSeek(t *testing.T) {
	s, err := New(encodeGIF(t, 4, 4, []int{10, 10, 10, 10, 10, 10}, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := s.Compose(5); err != nil {
		t.Fatalf("Compose(5): %v", err)
	}

	img, err := s.Compose(1)
	if err != nil {
		t.Fatalf("Compose(1) after forward play: %v", err)
	}
	wr, wg, wb, _ := testPalette[1].RGBA()
	gr, gg, gb, _ := img.At(0, 0).RGBA()
	if gr != wr || gg != wg || gb != wb {
		t.Errorf("re-composed frame 1 pixel = (%d,%d,%d), want (%d,%d,%d)",
			gr, gg, gb, wr, wg, wb)
	}
}

// layer describes one frame of a layered GIF: a sub-rectangle filled with a
// single palette color, plus the frame's disposal method.
type layer struct {
	rect     image.Rectangle
	color    uint8
	disposal byte
}

// encodeLayeredGIF builds an animated GIF from per-frame sub-rectangles so
// the canvas state carried between frames becomes observable.
func encodeLayeredGIF(t *testing.T, w, h int, layers []layer) []byte {
	t.Helper()
	g := &gif.GIF{Config: image.Config{Width: w, Height: h}}
	for _, l := range layers {
		pal := image.NewPaletted(l.rect, testPalette)
		for p := range pal.Pix {
			pal.Pix[p] = l.color
		}
		g.Image = append(g.Image, pal)
		g.Delay = append(g.Delay, 10)
		g.Disposal = append(g.Disposal, l.disposal)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	return buf.Bytes()
}

// wantPixel fails unless img at (x, y) matches the opaque palette color ci.
func wantPixel(t *testing.T, img image.Image, x, y int, ci int) {
	t.Helper()
	wr, wg, wb, _ := testPalette[ci].RGBA()
	gr, gg, gb, _ := img.At(x, y).RGBA()
	if gr != wr || gg != wg || gb != wb {
		t.Errorf("pixel (%d,%d) = (%d,%d,%d), want palette %d (%d,%d,%d)",
			x, y, gr, gg, gb, ci, wr, wg, wb)
	}
}

// TestComposeDisposal verifies what a partial frame leaves on the canvas for
// each GIF disposal method. Frame 0 fills the canvas red, frame 1 lays a 2x2
// blue overlay in the corner with the disposal method under test, and frame 2
// paints one green pixel far away, so the overlay's corner on frame 2 shows
// exactly what frame 1's disposal left behind.
func TestComposeDisposal(t *testing.T) {
	const (
		red   = 1
		green = 2
		blue  = 3
	)
	makeLayers := func(disposal byte) []layer {
		return []layer{
			{image.Rect(0, 0, 4, 4), red, gif.DisposalNone},
			{image.Rect(0, 0, 2, 2), blue, disposal},
			{image.Rect(3, 3, 4, 4), green, gif.DisposalNone},
		}
	}

	t.Run("none keeps overlay", func(t *testing.T) {
		s, err := New(encodeLayeredGIF(t, 4, 4, makeLayers(gif.DisposalNone)))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		img, err := s.Compose(2)
		if err != nil {
			t.Fatalf("Compose(2): %v", err)
		}
		wantPixel(t, img, 0, 0, blue)
	})

	t.Run("previous restores covered region", func(t *testing.T) {
		s, err := New(encodeLayeredGIF(t, 4, 4, makeLayers(gif.DisposalPrevious)))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		// The overlay is visible on its own frame.
		img, err := s.Compose(1)
		if err != nil {
			t.Fatalf("Compose(1): %v", err)
		}
		wantPixel(t, img, 0, 0, blue)
		// Afterwards the covered region returns to the frame-0 fill.
		img, err = s.Compose(2)
		if err != nil {
			t.Fatalf("Compose(2): %v", err)
		}
		wantPixel(t, img, 0, 0, red)
		wantPixel(t, img, 3, 3, green)
	})

	t.Run("background clears covered region", func(t *testing.T) {
		s, err := New(encodeLayeredGIF(t, 4, 4, makeLayers(gif.DisposalBackground)))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		img, err := s.Compose(2)
		if err != nil {
			t.Fatalf("Compose(2): %v", err)
		}
		if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
			t.Errorf("pixel (0,0) alpha = %d, want 0 (cleared)", a)
		}
		// Outside the disposed region the canvas is untouched.
		wantPixel(t, img, 3, 0, red)
	})
}

// TestComposeDisposalAfterReset verifies that a backward seek past everything
// retained replays the disposal chain identically: the restart from frame 0
// must reproduce the same restored canvas, not just the same frame bitmaps.
func TestComposeDisposalAfterReset(t *testing.T) {
	const (
		red   = 1
		green = 2
		blue  = 3
	)
	layers := []layer{
		{image.Rect(0, 0, 4, 4), red, gif.DisposalNone},
		{image.Rect(0, 0, 2, 2), blue, gif.DisposalPrevious},
	}
	for range 6 {
		layers = append(layers, layer{image.Rect(3, 3, 4, 4), green, gif.DisposalNone})
	}

	s, err := New(encodeLayeredGIF(t, 4, 4, layers))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Play forward far enough that frame 2 falls out of the composed cache.
	if _, err := s.Compose(7); err != nil {
		t.Fatalf("Compose(7): %v", err)
	}

	img, err := s.Compose(2)
	if err != nil {
		t.Fatalf("Compose(2) after forward play: %v", err)
	}
	wantPixel(t, img, 0, 0, red) // restored by frame 1's disposal
}

// TestComposeOutOfRange verifies range checking.
func TestComposeOutOfRange(t *testing.T) {
	s, err := New(encodeGIF(t, 4, 4, []int{10, 10}, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Compose(-1); err == nil {
		t.Error("Compose(-1) succeeded, want error")
	}
	if _, err := s.Compose(2); err == nil {
		t.Error("Compose(2) succeeded, want error")
	}
}

// TestDelayAccessors verifies Delay bounds behavior.
func TestDelayAccessors(t *testing.T) {
	s, err := New(encodeGIF(t, 4, 4, []int{10, 20}, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.Delay(0); got != 100*time.Millisecond {
		t.Errorf("Delay(0) = %v, want 100ms", got)
	}
	if got := s.Delay(1); got != 200*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 200ms", got)
	}
	if got := s.Delay(-1); got != 0 {
		t.Errorf("Delay(-1) = %v, want 0", got)
	}
	if got := s.Delay(2); got != 0 {
		t.Errorf("Delay(2) = %v, want 0", got)
	}
}
