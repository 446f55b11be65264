/*
Package webhook forwards topic messages to HTTP endpoints.

A Sink is a stream subscriber of topic.Message. Each message is posted
as JSON with the X-Trace-ID and X-Webhook-ID headers:

	{"webhook":"wh_...","topic":"sensors/temp","value":21.5,"trace_id":"...","at":"..."}

Delivery path:
  - bounded queue, drained by one goroutine per sink
  - x/time/rate limiter
  - resilience circuit breaker (opens after 5 consecutive failures)
  - resty request over a retryablehttp transport with backoff

Registry ties sinks to hub watches so webhooks can be added and removed
at runtime.
*/
package webhook
