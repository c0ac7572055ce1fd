// Package engine drives the external migration engine.
//
// CommandEngine renders the configured argument templates, runs them through
// execshell, and decodes the graph document the engine prints into a
// migration.Graph plus the applied set. The applied set can alternatively be
// read straight from the engine's bookkeeping table through database/sql.
package engine
