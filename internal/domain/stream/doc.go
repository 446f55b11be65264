/*
Package stream implements synchronous push streams.

A Publisher delivers every value passed to NotifyNextValue to each of its
current subscribers, in subscription order, on the caller's goroutine.
Publishers compose: Select, Map, Filter and Cache return derived publishers
that subscribe to their source lazily, when they gain their first
subscriber, and detach again when the last one goes away.

Subscriptions are released with Close. A Subscription that becomes
unreachable without being closed is released by the garbage collector, so
dropping the handle of a derived chain also releases every stage upstream.

Example:

	values := stream.NewPublisher[int]()
	doubled := values.Select(func(v int) int { return v * 2 }).Cache()

	sub := doubled.Subscribe(stream.NewSubscriber(func(v int) {
		fmt.Println(v)
	}))
	defer sub.Close()

	values.NotifyNextValue(5) // prints 10
	values.NotifyNextValue(5) // suppressed by Cache
*/
package stream
