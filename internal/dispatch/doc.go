// ABOUTME: Package documentation for the execution orchestrator.
// ABOUTME: Describes the dispatch sequence, deadline race, and logging guarantee.

// Package dispatch turns loosely-typed call envelopes into safely-executed
// capability invocations.
//
// The sequence is fixed: resolve the capability in the registry, validate the
// parameters against its schema, run the permission check, then invoke the
// handler raced against a hard deadline. Validation and permission failures
// short-circuit before the handler runs, so rejected calls have no side
// effects. Every dispatch emits exactly one execution log entry, and every
// code path returns a value; a handler failure never crashes the process.
package dispatch
