// Package level implements db.Backend on top of goleveldb.
//
// All columns share one LevelDB instance. A key is stored as the column byte
// followed by the raw key, so a column scan is a prefix scan and keeps the
// ascending key order LevelDB guarantees. A commit is written as a single
// leveldb.Batch and is therefore atomic.
//
// OpenMemory uses goleveldb's memory storage and is meant for tests.
package level
