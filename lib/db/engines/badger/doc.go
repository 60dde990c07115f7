// Package badger implements db.Backend on top of badger v4.
//
// Keys are stored with a one byte column prefix, a column scan is a prefix
// iteration. Commits run inside a single read-write transaction. Badger logs
// through the package Logger so its output has the same format as the rest
// of the node.
//
// Badger keeps deleted values in its value log until the value log GC rewrites
// the affected files. The backend implements db.Compactor so the statement
// store triggers that from its maintenance loop.
package badger
