package anim

import (
	"context"
	"sync"

	"github.com/gogpu/anim/internal/framecache"
	"github.com/gogpu/anim/internal/pressure"
)

// The process-wide registry of live images, initialized lazily on first
// construction. Entries are weak: the registry never keeps an image alive,
// and entries for collected images are dropped automatically.
var (
	registryOnce sync.Once
	registry     *pressure.Registry[AnimatedImage]
)

func sharedRegistry() *pressure.Registry[AnimatedImage] {
	registryOnce.Do(func() {
		registry = pressure.NewRegistry[AnimatedImage]()
	})
	return registry
}

// cacheBackoff shrinks and recovers one image's frame cache; the backoff
// targets the cache through a weak handle, so a pending recovery timer never
// keeps a closed image's state alive and fires as a no-op after collection.
type cacheBackoff = pressure.Backoff[framecache.Cache[*Frame]]

func newCacheBackoff(cache *framecache.Cache[*Frame]) *cacheBackoff {
	return pressure.NewBackoff(cache, applyPressureCap, pressure.Delays{})
}

// applyPressureCap is the backoff's cap hook. 0 clears the cap. Deliberately
// a top-level function: recovery timers must not capture the image.
func applyPressureCap(c *framecache.Cache[*Frame], limit int) {
	c.SetInternalCap(limit)
}

// NotifyMemoryPressure broadcasts a memory-pressure signal to every live
// AnimatedImage in the process and returns how many were notified.
//
// Each image immediately shrinks its cache to a single frame (the purge
// happens on its next read) and schedules bounded recovery; repeated signals
// suppress recovery so the caches stay small while pressure lasts.
//
// Hosts integrate their platform signal here, e.g. by calling this from a
// low-memory callback.
func NotifyMemoryPressure() int {
	return sharedRegistry().Notify(func(a *AnimatedImage) {
		a.handleMemoryPressure()
	})
}

// WatchPressure forwards every receive on signals to NotifyMemoryPressure
// until ctx is done or signals is closed. It returns immediately; the
// forwarding runs on its own goroutine.
func WatchPressure(ctx context.Context, signals <-chan struct{}) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				NotifyMemoryPressure()
			}
		}
	}()
}

func (a *AnimatedImage) handleMemoryPressure() {
	if a.closed.Load() {
		return
	}
	a.backoff.Pressure()
	Logger().Warn("anim: memory pressure",
		"image", a.id.String(), "warnings", a.backoff.Warnings())
}
