// ABOUTME: Package documentation for the capability registry and schemas.
// ABOUTME: Describes the fixed catalogue model and boot-time self-check.

// Package capability defines the fixed catalogue of assistant capabilities.
//
// The catalogue is a closed set: every capability is declared statically,
// bound to exactly one handler, and registered once at startup. There is no
// runtime extension point; the set of reachable behaviors is auditable from
// the declarations alone.
//
// A Schema carries three things: the parameter spec (rendered to JSON Schema
// and compiled at boot), the handler binding, and the hints the permission
// checker uses to find resource references inside parameters. NewRegistry
// refuses to build on any inconsistency, so a broken declaration is a failed
// boot rather than a runtime surprise.
package capability
