// Package codegen assembles a fragment store into a single C program.
//
// The Generator writes two synchronized streams. The code stream is the
// program handed to the compiler; it carries a #line directive wherever the
// emission position jumps, so diagnostics name the fragment ("statement_2")
// instead of the synthesized file. The optional trace stream carries the same
// text plus section banners, and, at trace level 2 and above, the same
// #line directives. After generation the trace stream is drained through a
// line-numbering filter onto the diagnostic writer.
//
// A Generator may be reused for any number of runs; each run releases the
// previous run's buffers before opening new ones. It is not safe for
// concurrent use.
package codegen
