// Package branchmigrate reconciles the schema when git switches branches.
//
// The migrate command runs from the post-checkout hook in three chained
// processes. Stage one records the applied migrations missing from the new
// branch and checks out the previous branch. Stage two rolls those migrations
// back with the old branch's graph and checks out the new branch again. Stage
// three applies everything the new branch defines. The stage travels between
// processes in the SCHEMAHOP_STAGE environment variable.
package branchmigrate
