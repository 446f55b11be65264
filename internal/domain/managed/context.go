package managed

import (
	"sync"

	"github.com/GriffinCanCode/observable/internal/infrastructure/logging"
	"github.com/GriffinCanCode/observable/internal/infrastructure/monitoring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Object is anything the context can track. Identity is the UUID, not the
// Go pointer: a second object reporting the same UUID replaces the first.
type Object interface {
	UUID() uuid.UUID
}

// Callback observes a registration event
type Callback func(obj Object)

// Stats summarises the registry
type Stats struct {
	Registered    int `json:"registered"`
	Subscriptions int `json:"subscriptions"`
	Pending       int `json:"pending"`
}

// Context is a registry of live objects keyed by UUID that lets callers
// bind to an object that may not exist yet.
type Context struct {
	mu            sync.RWMutex
	registrations map[uuid.UUID]Object     // Protected by mu
	subscriptions map[uuid.UUID][]*watcher // Protected by mu
	logger        *logging.Logger
	metrics       *monitoring.Metrics
}

// NewContext creates an empty context
func NewContext() *Context {
	return &Context{
		registrations: make(map[uuid.UUID]Object),
		subscriptions: make(map[uuid.UUID][]*watcher),
		logger:        logging.NewNop(),
	}
}

// WithLogger adds debug logging of registry events
func (c *Context) WithLogger(logger *logging.Logger) *Context {
	c.logger = logging.OrNop(logger).Named("managed")
	return c
}

// WithMetrics adds metrics tracking to the context
func (c *Context) WithMetrics(metrics *monitoring.Metrics) *Context {
	c.metrics = metrics
	return c
}

// Register records obj under its UUID, replacing any object already
// registered under that UUID, and calls onRegistered for every
// subscription on the UUID in subscription order.
func (c *Context) Register(obj Object) {
	id := obj.UUID()

	c.mu.Lock()
	c.registrations[id] = obj
	watchers := c.snapshot(id)
	count := len(c.registrations)
	c.mu.Unlock()

	c.metrics.SetManagedObjects(count)
	c.logger.Debug("Object registered",
		zap.String("uuid", id.String()),
		zap.Int("subscribers", len(watchers)))

	for _, w := range watchers {
		c.fire(w, w.onRegistered, obj, "registered")
	}
}

// Unregister removes the registration for obj's UUID and calls
// onUnregistered for every subscription on it. Unregistering a UUID that
// is not registered does nothing.
func (c *Context) Unregister(obj Object) {
	id := obj.UUID()

	c.mu.Lock()
	if _, ok := c.registrations[id]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.registrations, id)
	watchers := c.snapshot(id)
	count := len(c.registrations)
	c.mu.Unlock()

	c.metrics.SetManagedObjects(count)
	c.logger.Debug("Object unregistered",
		zap.String("uuid", id.String()),
		zap.Int("subscribers", len(watchers)))

	for _, w := range watchers {
		c.fire(w, w.onUnregistered, obj, "unregistered")
	}
}

// Subscribe watches id. When an object with that UUID is already
// registered, onRegistered runs before Subscribe returns. onUnregistered
// may be nil.
func (c *Context) Subscribe(id uuid.UUID, onRegistered, onUnregistered Callback) *Subscription {
	w := &watcher{id: id, onRegistered: onRegistered, onUnregistered: onUnregistered}
	w.active.Store(true)

	c.mu.Lock()
	c.subscriptions[id] = append(c.subscriptions[id], w)
	obj, registered := c.registrations[id]
	c.mu.Unlock()

	sub := newSubscription(c, w)
	if registered {
		c.fire(w, w.onRegistered, obj, "registered")
	}
	return sub
}

// Lookup returns the object registered under id
func (c *Context) Lookup(id uuid.UUID) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	obj, ok := c.registrations[id]
	return obj, ok
}

// Stats returns registry counts. Pending counts subscriptions whose UUID
// has no registered object.
func (c *Context) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{Registered: len(c.registrations)}
	for id, watchers := range c.subscriptions {
		stats.Subscriptions += len(watchers)
		if _, ok := c.registrations[id]; !ok {
			stats.Pending += len(watchers)
		}
	}
	return stats
}

// snapshot copies the watcher list for id. Callers must hold c.mu.
func (c *Context) snapshot(id uuid.UUID) []*watcher {
	watchers := c.subscriptions[id]
	if len(watchers) == 0 {
		return nil
	}
	return append([]*watcher(nil), watchers...)
}

func (c *Context) fire(w *watcher, cb Callback, obj Object, kind string) {
	if cb == nil || !w.active.Load() {
		return
	}
	c.metrics.RecordManagedCallback(kind)
	cb(obj)
}

func (c *Context) remove(w *watcher) {
	w.active.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()

	watchers := c.subscriptions[w.id]
	for i, cur := range watchers {
		if cur == w {
			watchers = append(watchers[:i:i], watchers[i+1:]...)
			break
		}
	}
	if len(watchers) == 0 {
		delete(c.subscriptions, w.id)
	} else {
		c.subscriptions[w.id] = watchers
	}
}
