// Package engine is the public face of the spaced-repetition core.
//
// An Engine is an explicit, owned instance: the host constructs one
// over a storage backend, awaits EnsureReady, and passes it to
// whatever presents questions. Nothing here is a package-level
// singleton and nothing initializes as an import side effect.
//
// ARCHITECTURE:
//
// The engine composes four collaborators, dependency order leaf-first:
//
//   - progress.Store: durable, validated, debounced per-item state
//   - scheduler.Scheduler: pure box-transition and due-set policy
//   - session.Manager: bounded working sets for one study pass
//   - stats.Engine: read-only aggregation for dashboards
//
// Execution model is single-threaded and cooperative: every operation
// is a synchronous function over in-memory state, guarded by a
// one-shot readiness gate. Initialization runs once per instance, is
// memoized, and every caller observes the same outcome regardless of
// call order. The only asynchronous machinery anywhere below is the
// progress store's debounced flush, which coalesces rapid answer
// writes into one durable save.
//
// Error posture: corrupted persisted state degrades to empty and is
// logged, never surfaced; invalid caller arguments (an unknown item
// id) fail fast with a typed Error; session-restore failures silently
// resolve to regeneration.
package engine
