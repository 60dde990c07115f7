// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.Backend interface.
//
// The package contains:
//   - testing: A test suite for validating conformance to the Backend interface contract
//   - benchmark: Performance tests for measuring throughput of the operations the statement store uses
//
// This package is particularly useful for:
//   - Operators that need to select the most appropriate engine
//     based on performance characteristics
//   - Developers implementing the Backend interface
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() (db.Backend, error) {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	testing.RunBackendTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	testing.RunBackendBenchmarks(b, "MyDatabase", factory)
package testing
