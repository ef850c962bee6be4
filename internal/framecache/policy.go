package framecache

// Decoded-size thresholds, in megabytes, for the one-time sizing decision.
// Small animations are cached whole; medium ones get a sliding window;
// anything larger is decoded on demand, one frame at a time.
const (
	cacheAllThresholdMB = 10
	windowThresholdMB   = 75

	// DefaultWindow is the window length for medium-sized animations.
	DefaultWindow = 5

	// MinimumSize is the smallest cache the policy ever yields. A cache
	// always holds at least the frame being displayed.
	MinimumSize = 1

	bytesPerPixel = 4
	megabyte      = 1 << 20
)

// OptimalSize computes the cache size for an animation of the given pixel
// dimensions and frame count. The decision is made once at construction and
// never revisited; runtime shrinking happens through caps instead.
func OptimalSize(width, height, frameCount int) int {
	estimateMB := int64(width) * int64(height) * bytesPerPixel * int64(frameCount) / megabyte

	size := MinimumSize
	switch {
	case estimateMB <= cacheAllThresholdMB:
		size = frameCount
	case estimateMB <= windowThresholdMB:
		size = DefaultWindow
	}

	if size > frameCount {
		size = frameCount
	}
	if size < MinimumSize {
		size = MinimumSize
	}
	return size
}

// EffectiveSize combines the optimal size with the user-configured cap and
// the pressure-imposed internal cap. A cap of 0 means unset. The result is
// never below MinimumSize.
func EffectiveSize(optimal, userCap, internalCap int) int {
	size := optimal
	if userCap > 0 && userCap < size {
		size = userCap
	}
	if internalCap > 0 && internalCap < size {
		size = internalCap
	}
	if size < MinimumSize {
		size = MinimumSize
	}
	return size
}
