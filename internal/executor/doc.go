// Package executor implements a synchronous, depth-first GraphQL
// executor driven by per-field resolvers, with path tracking for span
// tracing and located errors with partial success.
//
// # Overview
//
// Execution walks one operation of a parsed document against the
// schema:
//   - The operation is selected by name, or by uniqueness when unnamed.
//   - Variables are coerced against the operation's variable
//     definitions; coercion failure stops execution before any resolver
//     runs.
//   - Fields are collected per object type in query order, expanding
//     fragments whose type condition applies and honoring @skip and
//     @include.
//   - Each field resolves through the ResolverMap entry for
//     "Type.field", falling back to the ExecContext's default resolver
//     (property access on map sources).
//
// # Paths and Tracing
//
// Every field resolution carries a fieldpath.Step chain: field segments
// for object fields, index segments for list elements. When the
// ExecContext has a tracer, each resolver call runs inside a span named
// "Type.field" registered at the field's path, so the span tree mirrors
// the resolver call tree with list indexes collapsed onto their owning
// field.
//
// # Value Completion
//
// Resolved values complete against their declared type: lists recurse
// per element with index-aware paths, object types execute their
// sub-selections against the resolved source, abstract types pick the
// concrete object type from the source's __typename, and leaves pass
// through as JSON-safe Go values.
//
// # Errors and Partial Success
//
// Resolver and completion failures are recorded as located errors
// (message plus response path) while execution continues elsewhere. A
// null produced at a non-null position bubbles to the nearest nullable
// ancestor, which becomes null and records the error once; at the root
// the whole data tree becomes null. Only context cancellation cuts the
// walk short, surfacing as a located error on the field where it was
// observed.
package executor
