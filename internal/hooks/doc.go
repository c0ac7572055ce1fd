// Package hooks installs the git post-checkout hook that runs the migrate
// command after each branch switch.
package hooks
