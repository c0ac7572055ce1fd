// Package snapshot persists sets of migration identifiers as JSON documents.
//
// A Store writes each set as an array of [app_label, migration_name] pairs
// beneath a root directory. Keys select either the single-slot document used
// between checkout stages or a per-branch document.
package snapshot
