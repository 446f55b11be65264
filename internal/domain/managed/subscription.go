package managed

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// watcher is the context-side record behind a Subscription
type watcher struct {
	id             uuid.UUID
	onRegistered   Callback
	onUnregistered Callback
	active         atomic.Bool
}

// Subscription is the handle returned by Context.Subscribe. Close removes
// it; an unreachable handle is removed by the garbage collector.
type Subscription struct {
	id      uuid.UUID
	watch   *watcher
	release func()
	cleanup runtime.Cleanup
}

func newSubscription(c *Context, w *watcher) *Subscription {
	var once sync.Once
	release := func() { once.Do(func() { c.remove(w) }) }

	s := &Subscription{id: w.id, watch: w, release: release}
	s.cleanup = runtime.AddCleanup(s, func(release func()) { release() }, release)
	return s
}

// UUID returns the watched identity
func (s *Subscription) UUID() uuid.UUID {
	return s.id
}

// Active reports whether callbacks still fire for this subscription
func (s *Subscription) Active() bool {
	return s.watch.active.Load()
}

// Close stops all further callbacks. Closing twice is a no-op.
func (s *Subscription) Close() {
	s.cleanup.Stop()
	s.release()
}

// Owner holds a registered object. Release unregisters it exactly once;
// an Owner dropped without Release unregisters once collected. In that
// case the onUnregistered callbacks run on the runtime's cleanup
// goroutine rather than on any goroutine of the caller, so they must not
// assume the caller's locks or goroutine-local state.
type Owner struct {
	obj     Object
	release func()
	cleanup runtime.Cleanup
}

// Own registers obj and returns its owning handle
func (c *Context) Own(obj Object) *Owner {
	c.Register(obj)

	var once sync.Once
	release := func() { once.Do(func() { c.Unregister(obj) }) }

	o := &Owner{obj: obj, release: release}
	o.cleanup = runtime.AddCleanup(o, func(release func()) { release() }, release)
	return o
}

// Object returns the owned object
func (o *Owner) Object() Object {
	return o.obj
}

// Release unregisters the owned object
func (o *Owner) Release() {
	o.cleanup.Stop()
	o.release()
}
