// Package trace records structured events while cplr assembles and builds
// a program.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	cplr --trace=- --trace-level=detail -e 'puts("hi")'
//
// # Levels
//
//   - LevelOff: No tracing
//   - LevelError: Only failures
//   - LevelPhase: Driver and pipeline stage boundaries
//   - LevelDetail: Generated sections
//   - LevelDebug: Everything including individual fragments
//
// # Scopes
//
//   - ScopeDriver: Top-level CLI operations
//   - ScopeStage: Generator lifecycle and build stages
//   - ScopeSection: One emitted category section
//   - ScopeFragment: One emitted fragment
//
// Tracers travel through the run via context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, "generate", 0)
//	defer span.End("")
package trace
