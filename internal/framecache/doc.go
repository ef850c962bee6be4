// Package framecache implements the memory-bounded frame cache behind
// animated image playback.
//
// # Sizing
//
// OptimalSize makes a one-time decision from the decoded size estimate:
// small animations are cached whole, medium ones get a sliding window of
// DefaultWindow frames, large ones are decoded on demand. The effective size
// at any moment is the optimal size reduced by a user-configured cap and a
// pressure-imposed internal cap (EffectiveSize).
//
// # Window
//
// Cache keeps a circular window of effective-size indexes anchored at the
// most recently read frame, wrapping past the end of the animation back to
// frame 0. Reads outside the window trigger background production of the
// missing indexes; frames that fall out of the window are purged after each
// read.
//
// # Thread safety
//
// Cache is safe for concurrent use by one reader and one producer. It must
// not be copied after creation (it contains a mutex).
package framecache
