// Package lstore implements the local statement store based on the store.IStore
// interface. It combines the in-memory index (package index) with a persistent
// db.Backend and a store.Validator.
//
// Key Features:
//   - Admission control with per account quotas and global limits
//   - Priority based eviction inside an account, including channel replacement
//   - Durable state: every change of the index is committed to the backend in one batch
//   - Expiry records so that removed statements are not re-admitted from the network
//     until the purge period has passed
//   - Background maintenance that purges old expiry records and compacts the backend
//
// Implementation Details:
//
//   - Submission: A statement is first checked against the index (known, expired),
//     then validated without holding any lock. The quotas returned by the validator
//     are passed to the index, which decides which statements of the account must be
//     evicted. The new statement, the evicted statements and their expiry records are
//     written in a single commit while the index lock is held, so the index and the
//     database never diverge for other callers.
//
//   - Sources: Network submissions of known or expired statements are answered
//     without validation. Local and chain sources may resubmit, a live statement
//     stays untouched and an expired one is admitted again.
//
//   - Loading: New reads the database version from the meta column, writes it for
//     an empty database and rebuilds the index from the statement and expiry columns.
//     Records that can not be decoded are logged and skipped.
//
//   - Reads: Queries collect the matching hashes under a read lock and load the
//     statements from the backend afterward. A statement removed in between is
//     logged and skipped.
//
// Metrics:
//
// Every store registers its counters and gauges in a VictoriaMetrics set, labeled
// with the configured name:
//
//	statement_store_submitted_statements_total{store="name"}
//	statement_store_validations_invalid_total{store="name"}
//	statement_store_statements_pruned_total{store="name"}
//	statement_store_statements{store="name"}
//	statement_store_expired_statements{store="name"}
//	statement_store_total_size_bytes{store="name"}
//
// Usage Example:
//
//	backend, _ := engines.Open(db.ImplLevel, "/var/lib/dstmt")
//	s, err := lstore.New(lstore.Config{
//		Backend:           backend,
//		Validator:         validator.NewSignatureValidator(validator.DefaultConfig()),
//		MaintenancePeriod: lstore.DefaultMaintenancePeriod,
//	})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	res := s.Submit(stmt, statement.SourceLocal)
package lstore
