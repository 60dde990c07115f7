// Package util provides helpers shared by the database engines and the statement index.
//
// The package contains:
//   - statistics: Summary statistics and a SizeHistogram used to report value sizes and account usage
//   - mapheap: A generic priority queue that also supports key based access, used as the expiry queue of the index
package util
