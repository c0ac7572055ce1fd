// Package branchsnapshot records the migrations defined on each branch and
// lists the rollback targets needed when switching between two recorded
// branches.
package branchsnapshot
