// Package db provides a standardized interface for the persistence backends of
// the statement store. It defines the Backend interface, an ordered, columnar
// key-value store with atomic multi-key commits, and abstracts the engine that
// actually stores the bytes.
//
// The package focuses on:
//   - A unified interface for point lookups, atomic batches and ordered column scans
//   - A fixed set of columns shared by all engines
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - Backend Interface: The core interface that all engines must satisfy.
//     It provides Get (point lookup), Commit (atomic list of puts and deletes),
//     Iterate (ordered scan of a single column), GetInfo and Close.
//
//   - Columns: ColMeta holds the database version, ColStatements maps a statement
//     hash to its encoding and ColExpired maps a hash to its expiry record.
//     Engines are free to map columns to prefixes, buckets or separate maps.
//
//   - Ops: A commit is a slice of Op values created with Put and Delete.
//     A nil value marks a delete, so Put always stores a non-nil slice.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for the available engines ("maple", "leveldb", "badger", "bolt").
//
//   - Database Information: The DatabaseInfo structure reports the engine type,
//     per-column key counts, an (estimated) size and implementation specific metadata.
//
// Consistency:
//   - Commit must be atomic. A reader that observes one op of a commit must observe all of them.
//   - Get and Iterate never return values of a commit that failed.
//   - After Close every method returns ErrClosed.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/dStmt/lib/db/engines/maple) provides an
// in-memory implementation built on xsync maps. It is used for tests and for nodes that do not
// need durability.
//
// The engines/level, engines/badger and engines/bolt packages wrap goleveldb, badger and bbolt
// respectively and persist data on disk.
//
// The util package (github.com/ValentinKolb/dStmt/lib/db/util) provides complementary tools:
//   - SizeHistogram and Stats: Utilities for analyzing data size distributions
//   - MapHeap: A keyed priority queue used for expiry bookkeeping
//
// The testing package (github.com/ValentinKolb/dStmt/lib/db/testing) provides
// standardized tests and benchmarks for Backend implementations.
//   - RunBackendTests: Runs a standardized test suite to validate implementations
//   - RunBackendBenchmarks: Provides performance benchmarks for comparing implementations
package db
