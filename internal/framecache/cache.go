package framecache

import (
	"sync"
	"sync/atomic"
)

// Cache is the sparse store of produced frames for one animated image,
// together with the circular-window bookkeeping that decides what should be
// resident and what gets purged.
//
// The window is anchored at the most recently requested frame index and wraps
// past the last frame back to 0, so that during looped playback the frames
// about to be displayed are the ones kept.
//
// Cache is safe for concurrent use: the playback goroutine reads and purges
// while the production worker commits. Cache must not be copied after
// creation (has mutex).
type Cache[V any] struct {
	mu          sync.Mutex
	frameCount  int
	optimal     int
	userCap     int // 0 = unset
	internalCap int // 0 = unset; owned by the pressure backoff
	frames      []V // Sparse; presence tracked by cached
	cached      map[int]struct{}
	requested   map[int]struct{} // Submitted for production, not yet committed
	current     int              // Last index asked for by the reader
	closed      bool

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	produced  atomic.Uint64
}

// New creates a cache for an animation with frameCount frames and the given
// optimal size (see OptimalSize). frameCount must be >= 2.
func New[V any](frameCount, optimal int) *Cache[V] {
	if optimal > frameCount {
		optimal = frameCount
	}
	if optimal < MinimumSize {
		optimal = MinimumSize
	}
	return &Cache[V]{
		frameCount: frameCount,
		optimal:    optimal,
		frames:     make([]V, frameCount),
		cached:     make(map[int]struct{}),
		requested:  make(map[int]struct{}),
	}
}

// FrameCount returns the fixed number of frames in the animation.
func (c *Cache[V]) FrameCount() int { return c.frameCount }

// OptimalSize returns the construction-time sizing decision.
func (c *Cache[V]) OptimalSize() int { return c.optimal }

// SetCurrent records index as the playback position anchoring the window.
func (c *Cache[V]) SetCurrent(index int) {
	c.mu.Lock()
	c.current = index
	c.mu.Unlock()
}

// Current returns the last index recorded by SetCurrent.
func (c *Cache[V]) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// EffectiveSize returns the cache size currently in force: the optimal size
// reduced by whichever caps are set.
func (c *Cache[V]) EffectiveSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveSizeLocked()
}

func (c *Cache[V]) effectiveSizeLocked() int {
	return EffectiveSize(c.optimal, c.userCap, c.internalCap)
}

// Window returns the indexes the cache wants resident, in priority order
// starting at the current index. When the effective size covers the whole
// animation it returns (nil, true) and callers treat every index as wanted,
// avoiding the allocation on the common small-image path.
func (c *Cache[V]) Window() ([]int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windowLocked()
}

// windowLocked computes the circular window. Caller must hold c.mu.
func (c *Cache[V]) windowLocked() ([]int, bool) {
	size := c.effectiveSizeLocked()
	if size >= c.frameCount {
		return nil, true
	}

	win := make([]int, 0, size)

	// First sub-range: [current, frameCount), truncated to size entries.
	first := c.frameCount - c.current
	if first > size {
		first = size
	}
	for i := range first {
		win = append(win, c.current+i)
	}

	// Second sub-range wraps to frame 0.
	for i := range size - first {
		win = append(win, i)
	}

	return win, false
}

// inWindowLocked reports whether index falls inside the current window
// without materializing it. Caller must hold c.mu.
func (c *Cache[V]) inWindowLocked(index int) bool {
	size := c.effectiveSizeLocked()
	if size >= c.frameCount {
		return true
	}
	// Distance from current to index, walking forward with wraparound.
	dist := index - c.current
	if dist < 0 {
		dist += c.frameCount
	}
	return dist < size
}

// MissingInWindow returns the window indexes that are neither cached nor
// already submitted for production, in production priority order (soonest
// needed first). The returned indexes are marked requested before the method
// returns, so concurrent calls never hand out the same index twice.
func (c *Cache[V]) MissingInWindow() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || len(c.cached) == c.frameCount {
		return nil
	}

	win, all := c.windowLocked()

	var missing []int
	appendMissing := func(i int) {
		if _, ok := c.cached[i]; ok {
			return
		}
		if _, ok := c.requested[i]; ok {
			return
		}
		c.requested[i] = struct{}{}
		missing = append(missing, i)
	}

	if all {
		// Full sweep, still prioritized from the current position.
		for i := c.current; i < c.frameCount; i++ {
			appendMissing(i)
		}
		for i := range c.current {
			appendMissing(i)
		}
		return missing
	}

	for _, i := range win {
		appendMissing(i)
	}
	return missing
}

// Commit transitions index from requested to cached with the produced value.
// Returns false if the cache has been closed and the value was dropped.
func (c *Cache[V]) Commit(index int, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.requested, index)
	if c.closed || index < 0 || index >= c.frameCount {
		return false
	}
	c.frames[index] = value
	c.cached[index] = struct{}{}
	c.produced.Add(1)
	return true
}

// Abandon drops index from the requested set without caching anything.
// Used when production of the frame failed; the index becomes eligible for
// re-request on the next window computation.
func (c *Cache[V]) Abandon(index int) {
	c.mu.Lock()
	delete(c.requested, index)
	c.mu.Unlock()
}

// Get returns the cached value for index, if resident.
func (c *Cache[V]) Get(index int) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	if index < 0 || index >= c.frameCount {
		// An invalid index is not a cache miss; it must not skew HitRate.
		return zero, false
	}
	if _, ok := c.cached[index]; !ok {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return c.frames[index], true
}

// PurgeIfNeeded evicts frames outside the current window when the cache holds
// more than the effective size. Returns the number of evicted frames.
//
// Eviction is purely a cache transition; the underlying source keeps its own
// composition state, so re-caching a purged index later stays cheap.
func (c *Cache[V]) PurgeIfNeeded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked()
}

func (c *Cache[V]) purgeLocked() int {
	if len(c.cached) <= c.effectiveSizeLocked() {
		return 0
	}

	var zero V
	evicted := 0
	for i := range c.cached {
		if c.inWindowLocked(i) {
			continue
		}
		delete(c.cached, i)
		c.frames[i] = zero
		evicted++
	}
	c.evictions.Add(uint64(evicted))
	return evicted
}

// SetUserCap sets the externally configured cache cap. 0 clears it.
// Shrinking below the resident count purges immediately; returns the number
// of frames evicted.
func (c *Cache[V]) SetUserCap(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		n = 0
	}
	c.userCap = n
	return c.purgeLocked()
}

// UserCap returns the current user cap (0 = unset).
func (c *Cache[V]) UserCap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userCap
}

// SetInternalCap sets the pressure-imposed cap. 0 clears it. Unlike
// SetUserCap this does not purge; the shrink takes effect on the next read,
// keeping all evictions on the reader's goroutine.
func (c *Cache[V]) SetInternalCap(n int) {
	c.mu.Lock()
	if n < 0 {
		n = 0
	}
	c.internalCap = n
	c.mu.Unlock()
}

// InternalCap returns the current pressure-imposed cap (0 = unset).
func (c *Cache[V]) InternalCap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalCap
}

// FullyCached reports whether every frame is resident.
func (c *Cache[V]) FullyCached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cached) == c.frameCount
}

// Len returns the number of resident frames.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cached)
}

// Requested returns the number of indexes submitted but not yet committed.
func (c *Cache[V]) Requested() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requested)
}

// Close drops all cached frames and makes later commits no-ops.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	var zero V
	for i := range c.frames {
		c.frames[i] = zero
	}
	c.cached = make(map[int]struct{})
	c.requested = make(map[int]struct{})
}

// Stats contains cache statistics.
type Stats struct {
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
	// Evictions is the number of frames purged over the cache lifetime.
	Evictions uint64
	// Produced is the number of frames committed over the cache lifetime.
	Produced uint64
}

// Stats returns current cache statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	length := len(c.cached)
	capacity := c.effectiveSizeLocked()
	frameCount := c.frameCount
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:        length,
		Capacity:   capacity,
		FrameCount: frameCount,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
		Evictions:  c.evictions.Load(),
		Produced:   c.produced.Load(),
	}
}
