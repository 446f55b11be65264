/*
Package tracing provides lightweight request tracing.

# Overview

Every HTTP request gets a span. The trace id travels in the request
context into the topic hub, is stamped on every published message, and
leaves the process again in the X-Trace-ID header of webhook deliveries,
so one id follows a value from the publishing request to every consumer.

# Usage

	tracer := tracing.New("observable", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow (req_<ulid>)
- X-Span-ID: Identifier for current operation (span_<ulid>)

Completed spans are logged through zap by a single collector goroutine
fed from a buffered channel (1000 spans).
*/
package tracing
