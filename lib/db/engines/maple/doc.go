// Package maple implements an in-memory Backend for the statement store.
// It provides a complete implementation of the db.Backend interface with a
// focus on thread safety and low latency, and can optionally snapshot its
// content to disk when it is closed.
//
// The package focuses on:
//   - Concurrent point lookups through lock-minimizing maps
//   - Atomic commits of arbitrary op lists
//   - Ordered column scans as required to rebuild the statement index
//   - A simple binary snapshot format for restarts
//   - Statistics about the stored data
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.Backend. It owns one
//     internal.Column per db.Column and a commit lock. Commits take the lock exclusively,
//     Get and Iterate take it shared, so a reader never observes half of a commit.
//
//   - Column: A key space backed by an xsync.MapOf. Values are copied on the way in and
//     on the way out, so callers can never modify stored data. The column also tracks
//     the number of stored bytes so that GetInfo does not need a full scan.
//
// Internal Mechanisms:
//
//   - Ordered Iteration: Maps are unordered, so Iterate collects and sorts the keys of
//     the column before calling the callback. This is O(n log n), which is fine for the
//     one full scan the store does when it starts.
//
//   - Lock-free Data Structures:
//     xsync.MapOf is a concurrent map implementation that itself shards keys internally
//     for efficient access and minimal locking.
//
//   - Persistence Format: If DBOptions.Path is set the database is written to
//     "<path>/maple.db" on Close and read back on open. The file has the structure:
//     1. Magic number "MAPLEDB\x00" to identify the file format
//     2. Version number (currently 4)
//     3. Number of columns
//     4. For each column: number of entries followed by
//     (key length, key, value length, value) per entry in ascending key order
//     The snapshot is written to a temporary file first and renamed into place, so a
//     crash during Close leaves the previous snapshot intact. Commits after the last
//     snapshot are lost on a crash, use one of the disk engines if that matters.
//
//   - Metrics and Monitoring: The database provides statistics via the
//     GetInfo method, including:
//     1. Exact key counts and byte sizes per column
//     2. Value size estimates based on sampling
//     3. The distribution of keys across the columns
//
// Usage Example:
//
//	// Create a new in-memory database
//	database, err := maple.NewMapleDB(nil)
//
//	// Or one that survives restarts
//	database, err := maple.NewMapleDB(&maple.DBOptions{Path: "/var/lib/dstmt"})
//
//	// Write two keys atomically
//	err = database.Commit([]db.Op{
//		db.Put(db.ColStatements, hash[:], encoded),
//		db.Delete(db.ColExpired, hash[:]),
//	})
//
//	// Retrieve the value
//	value, err := database.Get(db.ColStatements, hash[:])
package maple
