// Package migration models the migration dependency graph and computes the
// rollback targets that bring a schema back to the boundary of a set of
// migrations.
//
// Graph values are immutable once built; ResolveTargets is a pure function of
// its inputs so callers can exercise it with hand-built fixtures.
package migration
