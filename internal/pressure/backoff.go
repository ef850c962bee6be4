package pressure

import (
	"sync"
	"time"
	"weak"
)

// Cache cap tiers applied by the backoff, in frames.
const (
	// MinimumCap is applied immediately on every pressure signal.
	MinimumCap = 1

	// GrowCap is the first recovery step after the grow delay.
	GrowCap = 2

	// maxGrowAttempts bounds recovery per pressure cycle: after this many
	// consecutive warnings the cache stays at MinimumCap instead of
	// oscillating between shrink and grow.
	maxGrowAttempts = 2
)

// Default recovery delays.
const (
	DefaultGrowDelay  = 2 * time.Second
	DefaultResetDelay = 3 * time.Second
)

// Delays configures the backoff recovery schedule. Zero fields use the
// package defaults. Tests inject small values here.
type Delays struct {
	// Grow is the time from a pressure signal to the first recovery step.
	Grow time.Duration
	// Reset is the additional time from the grow step to a full restore.
	Reset time.Duration
}

func (d Delays) withDefaults() Delays {
	if d.Grow <= 0 {
		d.Grow = DefaultGrowDelay
	}
	if d.Reset <= 0 {
		d.Reset = DefaultResetDelay
	}
	return d
}

// Backoff is the per-instance pressure reaction state machine.
//
// On every pressure signal the cache cap drops to MinimumCap at once. If the
// instance has not been warned too often, a delayed grow step raises the cap
// to GrowCap, and a further delayed reset clears it entirely. Any new signal
// cancels pending recovery, so sustained pressure converges to "stay at
// minimum" rather than oscillating.
//
// The target is referenced weakly: a timer firing after the instance is gone
// resolves to a no-op. Backoff is safe for concurrent use.
type Backoff[T any] struct {
	target weak.Pointer[T]
	apply  func(*T, int) // cap in frames; 0 clears the cap
	delays Delays

	mu         sync.Mutex
	warnings   int
	growTimer  *time.Timer
	resetTimer *time.Timer
	stopped    bool
}

// NewBackoff creates a backoff for target. apply installs a cap on the
// target's cache (0 clears it); it must not retain target. delays of zero
// use the package defaults.
func NewBackoff[T any](target *T, apply func(*T, int), delays Delays) *Backoff[T] {
	return &Backoff[T]{
		target: weak.Make(target),
		apply:  apply,
		delays: delays.withDefaults(),
	}
}

// Pressure reacts to one memory-pressure signal: shrink now, maybe recover
// later.
func (b *Backoff[T]) Pressure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	b.warnings++
	b.cancelTimersLocked()
	b.applyLocked(MinimumCap)

	if b.warnings > maxGrowAttempts {
		// Recovery budget exhausted for this cycle; stay at minimum.
		return
	}
	b.growTimer = time.AfterFunc(b.delays.Grow, b.grow)
}

// grow is the delayed first recovery step.
func (b *Backoff[T]) grow() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.growTimer = nil
	if b.stopped {
		return
	}
	b.applyLocked(GrowCap)
	b.resetTimer = time.AfterFunc(b.delays.Reset, b.reset)
}

// reset is the delayed full restore: the internal cap is cleared and the
// cache returns to its optimal size.
func (b *Backoff[T]) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetTimer = nil
	if b.stopped {
		return
	}
	b.applyLocked(0)
}

// applyLocked installs the cap on the target if it is still alive.
func (b *Backoff[T]) applyLocked(limit int) {
	if t := b.target.Value(); t != nil {
		b.apply(t, limit)
	}
}

func (b *Backoff[T]) cancelTimersLocked() {
	if b.growTimer != nil {
		b.growTimer.Stop()
		b.growTimer = nil
	}
	if b.resetTimer != nil {
		b.resetTimer.Stop()
		b.resetTimer = nil
	}
}

// Warnings returns the number of pressure signals seen so far.
func (b *Backoff[T]) Warnings() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.warnings
}

// PendingRecovery reports whether a grow or reset step is scheduled.
func (b *Backoff[T]) PendingRecovery() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.growTimer != nil || b.resetTimer != nil
}

// Stop cancels pending recovery and makes further signals no-ops. Safe to
// call multiple times; called on instance teardown.
func (b *Backoff[T]) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	b.cancelTimersLocked()
}
