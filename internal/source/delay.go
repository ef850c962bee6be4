package source

import (
	"math"
	"time"
)

// Delay resolution constants, in seconds. GIF encoders routinely write a
// delay of 0 (or omit the graphic control block entirely), and very small
// delays are historically rendered at ~10fps by browsers, so delays below
// the minimum are rounded up to the default rather than honored.
const (
	// defaultDelaySeconds is used when a frame carries no usable delay
	// and no earlier frame resolved to one.
	defaultDelaySeconds = 0.1

	// minDelaySeconds is the smallest delay honored as-is. Anything
	// below it resolves to defaultDelaySeconds.
	minDelaySeconds = 0.02

	// delayEpsilon guards the minimum comparison against float rounding.
	delayEpsilon = 1e-6
)

// resolveDelaySeconds resolves one frame's delay from its raw value and the
// previous frame's already-resolved delay, both in seconds.
//
// The fallback chain: a missing or non-positive raw delay inherits the
// previous frame's resolved delay (the first frame falls back to
// defaultDelaySeconds); a resolved delay below minDelaySeconds is clamped
// up to defaultDelaySeconds.
func resolveDelaySeconds(raw, prev float64) float64 {
	d := raw
	if d <= 0 {
		d = prev
	}
	if d <= 0 {
		d = defaultDelaySeconds
	}
	if d < minDelaySeconds-delayEpsilon {
		d = defaultDelaySeconds
	}
	return d
}

// resolveDelays resolves a full table of raw GIF delays (hundredths of a
// second, 0 = unspecified) into per-frame durations.
func resolveDelays(raw []int) []time.Duration {
	delays := make([]time.Duration, len(raw))
	prev := 0.0
	for i, cs := range raw {
		secs := resolveDelaySeconds(float64(cs)/100, prev)
		// Millisecond rounding keeps centisecond-based delays exact
		// despite the float chain.
		delays[i] = time.Duration(math.Round(secs*1000)) * time.Millisecond
		prev = secs
	}
	return delays
}
