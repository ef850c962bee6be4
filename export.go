package anim

import (
	"errors"
	"image"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrNoFrames is returned by Images when not a single frame could be
// composed.
var ErrNoFrames = errors.New("anim: no frames could be composed")

// Images flattens the animation into a fixed-rate frame list for consumers
// that cannot handle per-frame delays (e.g. simple sprite players).
//
// The playback period is the GCD of all frame delays; each source frame is
// repeated delay/period times in the result, so the returned slice plays
// back identically at one frame per period. Frames are shared, not copied:
// a source frame shown for three periods appears three times.
//
// Images decodes every frame once, bypassing the playback cache; it is a
// one-shot export utility, not part of the steady-state read path. Corrupt
// frames are skipped.
func (a *AnimatedImage) Images() ([]*Frame, time.Duration, error) {
	n := a.src.FrameCount()

	// Composition is inherently sequential (each frame builds on the
	// previous canvas); only the pre-draw conversion parallelizes.
	bitmaps := make([]*image.NRGBA, n)
	for i := range n {
		img, err := a.src.Compose(i)
		if err != nil {
			Logger().Warn("anim: export skipping frame",
				"image", a.id.String(), "index", i, "error", err)
			continue
		}
		bitmaps[i] = img
	}

	frames := make([]*Frame, n)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range n {
		if bitmaps[i] == nil {
			continue
		}
		g.Go(func() error {
			frames[i] = newFrame(i, bitmaps[i], a.maxDim)
			return nil
		})
	}
	_ = g.Wait() // Pre-draw never fails; Wait only joins the workers.

	// Fixed rate via GCD of the per-frame delays, in centiseconds.
	period := 0
	for i := range n {
		if frames[i] == nil {
			continue
		}
		period = gcd(period, delayCentiseconds(a.src.Delay(i)))
	}
	if period <= 0 {
		return nil, 0, ErrNoFrames
	}

	var out []*Frame
	for i := range n {
		if frames[i] == nil {
			continue
		}
		repeats := delayCentiseconds(a.src.Delay(i)) / period
		for range repeats {
			out = append(out, frames[i])
		}
	}

	return out, time.Duration(period) * 10 * time.Millisecond, nil
}

// delayCentiseconds rounds a delay to whole centiseconds, the GIF time base.
func delayCentiseconds(d time.Duration) int {
	return int(math.Round(d.Seconds() * 100))
}

// gcd returns the greatest common divisor, treating 0 as identity.
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
