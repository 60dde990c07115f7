// Package cmd implements the command-line interface of the dStmt statement
// store. It provides a hierarchical command structure with operations for
// running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the dStmt server
//   - stmt: Commands for statement store operations (submit, get, posted, etc.) and a perf tool
//   - keys: Commands for managing the encrypted key files used for signing and decryption
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dstmt -help for a list of all commands.
package cmd
