// Package produce runs background frame production for one animated image.
//
// Each image owns exactly one Scheduler, and each Scheduler owns at most one
// worker goroutine, started lazily on the first request and reused until
// Stop. The worker decodes missing frames in playback priority order and
// commits each one into the frame cache as soon as it is ready, so the
// soonest-needed frame becomes visible with minimum latency.
package produce

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gogpu/anim/internal/framecache"
)

// DecodeFunc produces the value for one frame index. It runs on the worker
// goroutine and may block on decode cost; it must respect ctx cancellation.
type DecodeFunc[V any] func(ctx context.Context, index int) (V, error)

// Scheduler coordinates background production of missing frames.
//
// Scheduler is safe for concurrent use. Request never blocks on production;
// it only computes the missing set and hands it to the worker.
type Scheduler[V any] struct {
	cache  *framecache.Cache[V]
	decode DecodeFunc[V]
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending [][]int
	started bool
	stopped bool
	wake    chan struct{}
}

// New creates a scheduler producing into cache via decode. The worker
// goroutine is not started until the first request that needs it.
func New[V any](cache *framecache.Cache[V], decode DecodeFunc[V], log *slog.Logger) *Scheduler[V] {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler[V]{
		cache:  cache,
		decode: decode,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
}

// Request records index as the playback position and submits production of
// whatever the cache window wants but does not have. Indexes are marked
// requested synchronously, so repeated requests for the same position while
// production is in flight submit no duplicate work.
func (s *Scheduler[V]) Request(index int) {
	s.cache.SetCurrent(index)

	// Fully cached animations never need the worker again.
	if s.cache.FullyCached() {
		return
	}

	batch := s.cache.MissingInWindow()
	if len(batch) == 0 {
		return
	}
	s.submit(batch)
}

// submit queues a batch for the worker, starting it if necessary.
func (s *Scheduler[V]) submit(batch []int) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		for _, i := range batch {
			s.cache.Abandon(i)
		}
		return
	}
	s.pending = append(s.pending, batch)
	if !s.started {
		s.started = true
		go s.worker()
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// nextBatch pops the oldest queued batch, or nil when the queue is empty.
func (s *Scheduler[V]) nextBatch() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending[0]
	s.pending = s.pending[1:]
	return batch
}

// worker is the single production loop. It exits when the scheduler stops;
// a frame mid-decode at that point is abandoned, never committed.
func (s *Scheduler[V]) worker() {
	for {
		batch := s.nextBatch()
		if batch == nil {
			select {
			case <-s.ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}

		for n, index := range batch {
			if s.ctx.Err() != nil {
				for _, i := range batch[n:] {
					s.cache.Abandon(i)
				}
				return
			}

			value, err := s.decode(s.ctx, index)
			if err != nil {
				// A failed frame stays a hole in the cache until a
				// later window computation re-requests it.
				s.cache.Abandon(index)
				s.log.Warn("anim: frame production failed",
					"index", index, "error", err)
				continue
			}
			s.cache.Commit(index, value)
		}
	}
}

// Stop cancels the worker and abandons everything still queued. It does not
// wait for an in-flight decode to finish; its eventual commit is dropped by
// the closed cache.
//
// Stop is safe to call multiple times.
func (s *Scheduler[V]) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.cancel()
	for _, batch := range pending {
		for _, i := range batch {
			s.cache.Abandon(i)
		}
	}
}
