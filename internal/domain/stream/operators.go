package stream

import (
	"reflect"
	"sync"
)

// FilterMap derives a publisher that emits fn(v) for each source value v
// for which fn reports true. The derived publisher subscribes to source
// only while it has subscribers of its own.
func FilterMap[T, U any](source *Publisher[T], fn func(T) (U, bool)) *Publisher[U] {
	derived := &Publisher[U]{}
	forward := NewSubscriber(func(value T) {
		if out, ok := fn(value); ok {
			derived.NotifyNextValue(out)
		}
	})

	derived.source = &link{
		attach: func() *Subscription { return source.Subscribe(forward) },
		count:  derived.SubscriberCount,
	}
	return derived
}

// Map derives a publisher emitting transform(v) for every source value.
// Unlike Publisher.Select it may change the element type.
func Map[T, U any](source *Publisher[T], transform func(T) U) *Publisher[U] {
	return FilterMap(source, func(value T) (U, bool) {
		return transform(value), true
	})
}

// Filter derives a publisher forwarding only values that satisfy keep
func Filter[T any](source *Publisher[T], keep func(T) bool) *Publisher[T] {
	return FilterMap(source, func(value T) (T, bool) {
		return value, keep(value)
	})
}

// CacheFunc derives a publisher that drops a value when equal reports it
// matches the last value forwarded. The first value always passes.
//
// The remembered value belongs to the derived publisher and outlives
// detach and reattach cycles.
func CacheFunc[T any](source *Publisher[T], equal func(a, b T) bool) *Publisher[T] {
	var (
		mu     sync.Mutex
		last   T
		primed bool
	)

	return FilterMap(source, func(value T) (T, bool) {
		mu.Lock()
		defer mu.Unlock()

		if primed && equal(last, value) {
			return value, false
		}
		last, primed = value, true
		return value, true
	})
}

func deepEqual[T any](a, b T) bool {
	return reflect.DeepEqual(a, b)
}
