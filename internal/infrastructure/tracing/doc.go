/*
Package tracing provides lightweight request tracing.

Trace and span IDs are prefixed ULIDs carried in the request context and
propagated through the X-Trace-ID and X-Span-ID headers. Finished spans are
buffered (1000) and logged asynchronously through zap; failed spans log at
warn level, the rest at debug.

	tracer := tracing.New("termsync", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "terminal.command")
	span.SetTag("command", "make build")
	err := run(ctx)
	tracer.End(span, err)
*/
package tracing
