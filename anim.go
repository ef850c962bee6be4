package anim

import (
	"context"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/anim/internal/framecache"
	"github.com/gogpu/anim/internal/produce"
	"github.com/gogpu/anim/internal/source"
)

// AnimatedImage is a multi-frame animated raster image with a memory-bounded
// frame cache.
//
// Frames are produced in the background by a per-image worker and read
// through Frame, which never blocks on decoding. Close releases the worker
// and all cached frames; images that are garbage collected without Close are
// cleaned up automatically.
type AnimatedImage struct {
	id      uuid.UUID
	src     *source.Source
	cache   *framecache.Cache[*Frame]
	sched   *produce.Scheduler[*Frame]
	backoff *cacheBackoff
	cleanup runtime.Cleanup
	maxDim  int
	closed  atomic.Bool
}

// Decode validates data as an animated image container and returns an
// AnimatedImage ready for playback.
//
// Decode fails with ErrNotDecodable, ErrSingleFrame or
// ErrUnsupportedContainer; see the error docs for the fallback each implies.
// Under ModeDefault the first frame is decoded synchronously so Frame(0) is
// warm; everything else is produced on demand.
func Decode(data []byte, opts ...DecodeOption) (*AnimatedImage, error) {
	o := defaultDecodeOptions()
	for _, opt := range opts {
		opt(&o)
	}

	src, err := source.New(data)
	if err != nil {
		return nil, err
	}

	// The sizing policy sees the dimensions frames will actually occupy.
	w, h := scaledDims(src.Width(), src.Height(), o.maxDim)
	optimal := framecache.OptimalSize(w, h, src.FrameCount())

	cache := framecache.New[*Frame](src.FrameCount(), optimal)
	if o.cacheCap > 0 {
		cache.SetUserCap(o.cacheCap)
	}

	decode := makeDecoder(src, o.maxDim)

	a := &AnimatedImage{
		id:     uuid.New(),
		src:    src,
		cache:  cache,
		maxDim: o.maxDim,
	}
	a.sched = produce.New(cache, decode, Logger().With("image", a.id.String()))
	a.backoff = newCacheBackoff(cache)

	switch o.mode {
	case ModeLazy:
		// All decoding deferred to the first read.
	default:
		// The only synchronous decode this type ever performs.
		if f, derr := decode(context.Background(), 0); derr == nil {
			cache.Commit(0, f)
		} else {
			Logger().Warn("anim: initial frame decode failed",
				"image", a.id.String(), "error", derr)
		}
		if o.mode == ModeFull {
			a.sched.Request(0)
		}
	}

	sharedRegistry().Add(a.id, a)
	a.cleanup = runtime.AddCleanup(a, releaseResources, teardown{
		id:      a.id,
		cache:   cache,
		sched:   a.sched,
		backoff: a.backoff,
	})

	Logger().Debug("anim: image constructed",
		"image", a.id.String(),
		"frames", src.FrameCount(),
		"size", optimal,
		"duration", src.TotalDuration())

	return a, nil
}

// DecodeReader is like Decode but reads the container from r.
func DecodeReader(r io.Reader, opts ...DecodeOption) (*AnimatedImage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data, opts...)
}

// makeDecoder builds the production decode function. It deliberately captures
// only the source, never the AnimatedImage, so an idle worker does not keep a
// forgotten image alive.
func makeDecoder(src *source.Source, maxDim int) produce.DecodeFunc[*Frame] {
	return func(ctx context.Context, index int) (*Frame, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := src.Compose(index)
		if err != nil {
			return nil, err
		}
		return newFrame(index, img, maxDim), nil
	}
}

// teardown carries everything releaseResources needs without referencing the
// AnimatedImage itself.
type teardown struct {
	id      uuid.UUID
	cache   *framecache.Cache[*Frame]
	sched   *produce.Scheduler[*Frame]
	backoff *cacheBackoff
}

// releaseResources is shared by Close and the GC cleanup. Safe to run twice.
func releaseResources(t teardown) {
	sharedRegistry().Remove(t.id)
	t.backoff.Stop()
	t.sched.Stop()
	t.cache.Close()
}

// Close stops background production, cancels pending pressure recovery,
// drops all cached frames and unregisters the image. Frame returns nil after
// Close. Close is safe to call multiple times.
func (a *AnimatedImage) Close() {
	if !a.closed.CompareAndSwap(false, true) {
		return
	}
	a.cleanup.Stop()
	releaseResources(teardown{id: a.id, cache: a.cache, sched: a.sched, backoff: a.backoff})
}

// FrameCount returns the number of frames in the animation. Always >= 2.
func (a *AnimatedImage) FrameCount() int {
	return a.src.FrameCount()
}

// Width returns the canvas width in pixels, after any WithMaxDimension
// downscaling.
func (a *AnimatedImage) Width() int {
	w, _ := a.frameDims()
	return w
}

// Height returns the canvas height in pixels, after any WithMaxDimension
// downscaling.
func (a *AnimatedImage) Height() int {
	_, h := a.frameDims()
	return h
}

func (a *AnimatedImage) frameDims() (int, int) {
	return scaledDims(a.src.Width(), a.src.Height(), a.maxDim)
}

// LoopCount reports how often the animation repeats: 0 means loop forever,
// -1 means play once, n > 0 means repeat n additional times.
func (a *AnimatedImage) LoopCount() int {
	return a.src.LoopCount()
}

// Delay returns the display duration of frame index, 0 when out of bounds.
func (a *AnimatedImage) Delay(index int) time.Duration {
	return a.src.Delay(index)
}

// TotalDuration returns the sum of all frame delays.
func (a *AnimatedImage) TotalDuration() time.Duration {
	return a.src.TotalDuration()
}

// Frame returns the render-ready frame at index, or nil when the index is
// out of bounds or the frame is not resident yet.
//
// Frame is the sole read path: it anchors the cache window at index, kicks
// off background production of missing frames and purges frames that fell
// out of the window. It never blocks on decoding.
func (a *AnimatedImage) Frame(index int) *Frame {
	if a.closed.Load() || index < 0 || index >= a.src.FrameCount() {
		return nil
	}

	a.sched.Request(index)
	f, _ := a.cache.Get(index)

	if evicted := a.cache.PurgeIfNeeded(); evicted > 0 {
		Logger().Debug("anim: purged frames",
			"image", a.id.String(), "evicted", evicted, "resident", a.cache.Len())
	}
	return f
}

// SetCacheCap caps the number of cached frames. 0 removes the cap. Setting a
// cap below the resident count purges immediately.
func (a *AnimatedImage) SetCacheCap(n int) {
	evicted := a.cache.SetUserCap(n)
	Logger().Debug("anim: cache cap changed",
		"image", a.id.String(), "cap", n, "evicted", evicted)
}

// CacheStats contains frame cache statistics.
type CacheStats struct {
	// Len is the current number of resident frames.
	Len int
	// Capacity is the effective cache size currently in force.
	Capacity int
	// FrameCount is the total number of frames in the animation.
	FrameCount int
	// Hits is the number of reads served from the cache.
	Hits uint64
	// Misses is the number of reads that found no resident frame.
	Misses uint64
	// HitRate is the cache hit rate 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of frames purged over the image lifetime.
	Evictions uint64
	// Produced is the number of frames decoded over the image lifetime.
	Produced uint64
}

// CacheStats returns current frame cache statistics.
func (a *AnimatedImage) CacheStats() CacheStats {
	s := a.cache.Stats()
	return CacheStats{
		Len:        s.Len,
		Capacity:   s.Capacity,
		FrameCount: s.FrameCount,
		Hits:       s.Hits,
		Misses:     s.Misses,
		HitRate:    s.HitRate,
		Evictions:  s.Evictions,
		Produced:   s.Produced,
	}
}
