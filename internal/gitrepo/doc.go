// Package gitrepo contains helpers for interrogating and switching Git branches.
//
// RepositoryManager checks out the previous branch through the git executable
// so that post-checkout hooks fire, and reads the current branch with go-git.
package gitrepo
