// Package anim plays back multi-frame animated raster images (animated GIF)
// with a memory-bounded frame cache.
//
// # Overview
//
// anim decodes frames on demand and keeps a circular window of decoded
// frames resident, anchored at the playback position. Frames ahead of the
// position are produced by a background worker; frames behind it are purged.
// The window adapts to the decoded size of the animation, to a user cap, and
// to memory-pressure signals from the host.
//
// # Quick Start
//
//	import "github.com/gogpu/anim"
//
//	img, err := anim.Decode(data)
//	if err != nil {
//	    // anim.ErrSingleFrame means "valid image, just not animated":
//	    // fall back to static handling.
//	    return err
//	}
//	defer img.Close()
//
//	for i := 0; ; i = (i + 1) % img.FrameCount() {
//	    if f := img.Frame(i); f != nil {
//	        present(f) // f implements image.Image
//	    }
//	    time.Sleep(img.Delay(i))
//	}
//
// # Caching
//
// The cache size is decided once at construction from the decoded size
// estimate: small animations are cached whole, medium ones keep a sliding
// window of a few frames, large ones are decoded frame by frame. Frame is
// the sole read path; it never blocks on decoding. A frame that is not yet
// produced returns nil and becomes available on a later read.
//
// # Memory pressure
//
// Hosts forward low-memory signals with NotifyMemoryPressure (or
// WatchPressure for channel-based sources). Every live image immediately
// shrinks its cache to a single frame and recovers in bounded delayed steps;
// sustained pressure converges to "stay at minimum".
//
// # Logging
//
// anim produces no log output by default. Call SetLogger to enable it.
//
// # Thread Safety
//
// An AnimatedImage is intended for a single playback consumer. All methods
// are safe for concurrent use with the internal production worker and with
// pressure fan-out.
package anim
