package stream

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Subscription is the handle returned by Publisher.Subscribe.
//
// Close ends delivery. A handle that is dropped without Close is released
// once the garbage collector finds it unreachable; until then delivery
// continues, so callers that need a deterministic end must Close.
type Subscription struct {
	release func()
	active  *atomic.Bool
	cleanup runtime.Cleanup
}

func newSubscription(detach func(), active *atomic.Bool) *Subscription {
	var once sync.Once
	release := func() { once.Do(detach) }

	s := &Subscription{release: release, active: active}
	// release must not reach s, otherwise s never becomes unreachable
	s.cleanup = runtime.AddCleanup(s, func(release func()) { release() }, release)
	return s
}

// Close stops delivery to the subscriber. Calling Close more than once is a no-op.
func (s *Subscription) Close() {
	s.cleanup.Stop()
	s.release()
}

// Active reports whether the subscription still receives values
func (s *Subscription) Active() bool {
	return s.active.Load()
}
