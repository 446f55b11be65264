package stream

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Subscriber receives values pushed by a Publisher
type Subscriber[T any] interface {
	Handle(value T)
}

// SubscriberFunc adapts an ordinary function to the Subscriber interface
type SubscriberFunc[T any] func(value T)

// Handle calls f(value)
func (f SubscriberFunc[T]) Handle(value T) {
	f(value)
}

// NewSubscriber wraps fn as a Subscriber
func NewSubscriber[T any](fn func(value T)) Subscriber[T] {
	return SubscriberFunc[T](fn)
}

// entry is the publisher-side record of one subscription.
// Publishers hold entries and never the Subscription handle itself.
type entry[T any] struct {
	sink   Subscriber[T]
	active atomic.Bool
}

// Publisher fans each notified value out to its subscribers
type Publisher[T any] struct {
	mu      sync.Mutex
	entries []*entry[T] // Protected by mu
	source  *link       // nil unless derived from another publisher
}

// NewPublisher creates a publisher with no subscribers
func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{}
}

// NotifyNextValue delivers value to every current subscriber in
// subscription order. Delivery happens on the calling goroutine and works
// on a snapshot taken at entry: subscribers added during delivery wait for
// the next value, subscribers closed during delivery are skipped.
// A panicking subscriber aborts delivery and the panic propagates.
func (p *Publisher[T]) NotifyNextValue(value T) {
	p.mu.Lock()
	snapshot := make([]*entry[T], len(p.entries))
	copy(snapshot, p.entries)
	p.mu.Unlock()

	for _, e := range snapshot {
		if e.active.Load() {
			e.sink.Handle(value)
		}
	}
}

// Subscribe registers sink and returns the handle that controls it.
// No value is replayed; sink sees only values notified after this call.
func (p *Publisher[T]) Subscribe(sink Subscriber[T]) *Subscription {
	if sink == nil {
		panic("stream: nil subscriber")
	}

	e := &entry[T]{sink: sink}
	e.active.Store(true)

	p.mu.Lock()
	p.entries = append(p.entries, e)
	p.mu.Unlock()

	if p.source != nil {
		p.source.sync()
	}

	return newSubscription(func() { p.remove(e) }, &e.active)
}

// SubscriberCount returns the number of active subscriptions
func (p *Publisher[T]) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Select returns a publisher emitting transform(v) for every value v of p
func (p *Publisher[T]) Select(transform func(T) T) *Publisher[T] {
	return Map(p, transform)
}

// Cache returns a publisher that suppresses values deeply equal to the
// previously forwarded one
func (p *Publisher[T]) Cache() *Publisher[T] {
	return CacheFunc(p, deepEqual[T])
}

func (p *Publisher[T]) remove(e *entry[T]) {
	e.active.Store(false)

	p.mu.Lock()
	if i := slices.Index(p.entries, e); i >= 0 {
		p.entries = slices.Delete(p.entries, i, i+1)
	}
	p.mu.Unlock()

	if p.source != nil {
		p.source.sync()
	}
}

// link keeps a derived publisher attached to its source exactly while the
// derived publisher has subscribers.
type link struct {
	mu       sync.Mutex
	attached *Subscription // Protected by mu
	attach   func() *Subscription
	count    func() int
}

func (l *link) sync() {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.count()
	switch {
	case n > 0 && l.attached == nil:
		l.attached = l.attach()
	case n == 0 && l.attached != nil:
		l.attached.Close()
		l.attached = nil
	}
}
