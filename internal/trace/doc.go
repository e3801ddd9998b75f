// Package trace records the phases of a weaving run.
//
// Enable tracing from the command line:
//
//	insider weave --trace=- --trace-level=detail App.dll out/App.dll
//
// Tracer implementations:
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to a file or stderr
//   - RingTracer: keeps the last events in memory
//   - MultiTracer: combines tracers
//
// Scopes, from coarse to fine: ScopePipeline, ScopePhase, ScopeModule,
// ScopeMarker. The Level decides which scopes are recorded.
//
// Tracers travel through the pipeline in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePhase, "open", trace.CurrentSpan(ctx))
//	defer span.End("")
package trace
