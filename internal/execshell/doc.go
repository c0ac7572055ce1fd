// Package execshell provides structured helpers for invoking external tools.
//
// ShellExecutor wraps a CommandRunner with lifecycle logging and typed
// failures, and OSCommandRunner is the default os/exec backed runner used to
// drive git and the configured migration engine.
package execshell
