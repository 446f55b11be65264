/*
Package resilience provides the circuit breaker used by webhook sinks.

A sink wraps every delivery in a Breaker, so an endpoint that keeps failing
stops consuming retries and rate-limit tokens until it has had time to
recover.

# Usage

	breaker := resilience.New("webhook-"+id, resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Execute(func() error {
		return deliver(ctx, msg)
	})
	if resilience.Rejected(err) {
		// the endpoint is considered down; it was not called
	}

# States

	Closed --[ReadyToTrip]-> Open --[Timeout]-> Half-Open --[MaxRequests successes]-> Closed
	                           ^                    |
	                           +-----[failure]------+

Settings.Now replaces the clock in tests.
*/
package resilience
