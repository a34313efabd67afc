/*
Package tracing records request and operation spans in the structured log.

A span is opened per HTTP request by the gin middleware and per long
operation (page loads, checklist runs, site-data clears) by the service.
Spans carry a trace id propagated through the X-Trace-ID and X-Span-ID
headers, so a client can correlate its request with server log lines.

	tracer := tracing.New("pagelens", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "pentest")
	defer tracer.End(span, err)

Completed spans are handed to a buffered collector; when the buffer is
full a span is dropped with a warning rather than blocking the caller.
*/
package tracing
