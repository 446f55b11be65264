/*
Package managed provides a registry of live objects keyed by UUID.

Callers can bind to an object before it exists. Subscribe(id, ...) fires
onRegistered as soon as an object with that UUID is registered, or
immediately when one already is, and onUnregistered when it goes away.
This lets persisted references be resolved lazily, whichever side is
loaded first.

Callbacks run synchronously on the goroutine that registers, unregisters
or subscribes, after the registry lock is released, so they may call back
into the Context. Panics in callbacks propagate to that caller.

Ownership is explicit: Own registers an object and returns an Owner whose
Release unregisters it. Handles dropped without Close or Release are
cleaned up by the garbage collector as a last resort.
*/
package managed
