package anim

// DecodeMode controls the initial decode strategy of an animated image.
type DecodeMode int

const (
	// ModeDefault decodes the first frame synchronously at construction
	// and produces the rest of the window in the background on demand.
	ModeDefault DecodeMode = iota

	// ModeLazy defers all frame decoding until the first read.
	ModeLazy

	// ModeFull eagerly schedules background production of the initial
	// window at construction.
	ModeFull
)

// DecodeOption configures an AnimatedImage during creation.
// Use functional options to customize decode behavior.
//
// Example:
//
//	// Default decoding
//	img, err := anim.Decode(data)
//
//	// Bounded cache, lazy initial decode
//	img, err := anim.Decode(data, anim.WithCacheCap(3), anim.WithMode(anim.ModeLazy))
type DecodeOption func(*decodeOptions)

// decodeOptions holds optional configuration for Decode.
type decodeOptions struct {
	mode     DecodeMode
	cacheCap int
	maxDim   int
}

// defaultDecodeOptions returns the default decode options.
func defaultDecodeOptions() decodeOptions {
	return decodeOptions{
		mode:     ModeDefault,
		cacheCap: 0, // Unset: sizing policy decides
		maxDim:   0, // No downscaling
	}
}

// WithMode sets the initial decode strategy. See DecodeMode.
func WithMode(m DecodeMode) DecodeOption {
	return func(o *decodeOptions) {
		o.mode = m
	}
}

// WithCacheCap caps the number of cached frames regardless of the sizing
// policy. 0 means no cap. The cap can be changed later with
// [AnimatedImage.SetCacheCap].
func WithCacheCap(n int) DecodeOption {
	return func(o *decodeOptions) {
		if n < 0 {
			n = 0
		}
		o.cacheCap = n
	}
}

// WithMaxDimension downscales frames whose long side exceeds n pixels during
// pre-draw, bounding per-frame memory. 0 disables downscaling. The sizing
// policy sees the downscaled dimensions.
func WithMaxDimension(n int) DecodeOption {
	return func(o *decodeOptions) {
		if n < 0 {
			n = 0
		}
		o.maxDim = n
	}
}
