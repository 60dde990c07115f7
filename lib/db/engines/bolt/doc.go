// Package bolt implements db.Backend on top of bbolt.
//
// Each column is a bucket ("meta", "statements", "expired") in a single
// database file. Commits are one read-write transaction, bolt serializes
// writers so commits never interleave. Iteration uses a bucket cursor and
// is ordered by key.
package bolt
