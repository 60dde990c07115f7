package testing

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dStmt/lib/db"
)

// RunBackendBenchmarks runs all benchmarks for a backend implementation
func RunBackendBenchmarks(b *testing.B, name string, factory db.Factory) {
	b.Run(name, func(b *testing.B) {

		b.Run("Put", func(b *testing.B) {
			benchmarkPut(b, openB(b, factory))
		})

		b.Run("PutLargeValue", func(b *testing.B) {
			benchmarkPutLargeValue(b, openB(b, factory))
		})

		b.Run("SubmitBatch", func(b *testing.B) {
			benchmarkSubmitBatch(b, openB(b, factory))
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, openB(b, factory))
		})

		b.Run("Get(not)", func(b *testing.B) {
			benchmarkGetNot(b, openB(b, factory))
		})

		b.Run("Iterate", func(b *testing.B) {
			benchmarkIterate(b, openB(b, factory))
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, openB(b, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func openB(b *testing.B, factory db.Factory) db.Backend {
	b.Helper()
	database, err := factory()
	if err != nil {
		b.Fatalf("Failed to create backend: %v", err)
	}
	b.Cleanup(func() {
		database.Close()
	})
	return database
}

func fill(b *testing.B, database db.Backend, n int) {
	b.Helper()
	const batch = 1000
	ops := make([]db.Op, 0, batch)
	for i := 0; i < n; i++ {
		ops = append(ops, db.Put(db.ColStatements, benchKey(i), []byte(fmt.Sprintf("test-value-%d", i))))
		if len(ops) == batch {
			if err := database.Commit(ops); err != nil {
				b.Fatalf("Commit failed: %v", err)
			}
			ops = ops[:0]
		}
	}
	if err := database.Commit(ops); err != nil {
		b.Fatalf("Commit failed: %v", err)
	}
}

func benchKey(i int) []byte {
	return []byte(fmt.Sprintf("test-key-%010d", i))
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for single key commits
func benchmarkPut(b *testing.B, database db.Backend) {
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := int(counter.Add(1))
			if err := database.Commit([]db.Op{db.Put(db.ColStatements, benchKey(i), []byte(fmt.Sprintf("test-value-%d", i)))}); err != nil {
				b.Errorf("Commit failed: %v", err)
				return
			}
		}
	})
}

// Benchmark for commits with large values
func benchmarkPutLargeValue(b *testing.B, database db.Backend) {
	var counter atomic.Int64
	largeValue := make([]byte, 64*1024) // 64KB

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := int(counter.Add(1))
			if err := database.Commit([]db.Op{db.Put(db.ColStatements, benchKey(i), largeValue)}); err != nil {
				b.Errorf("Commit failed: %v", err)
				return
			}
		}
	})
}

// Benchmark for the commit shape of a submission that evicts older statements:
// one put into statements, plus a delete and an expiry record per evicted statement
func benchmarkSubmitBatch(b *testing.B, database db.Backend) {
	fill(b, database, b.N*3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ops := []db.Op{db.Put(db.ColStatements, benchKey(b.N*3+i), []byte("new-statement"))}
		for j := 0; j < 3; j++ {
			key := benchKey(i*3 + j)
			ops = append(ops, db.Delete(db.ColStatements, key), db.Put(db.ColExpired, key, []byte("expiry")))
		}
		if err := database.Commit(ops); err != nil {
			b.Fatalf("Commit failed: %v", err)
		}
	}
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.Backend) {
	const numKeys = 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			if _, err := database.Get(db.ColStatements, benchKey(r.Intn(numKeys))); err != nil {
				b.Errorf("Get failed: %v", err)
				return
			}
		}
	})
}

// Benchmark for lookups of missing keys
func benchmarkGetNot(b *testing.B, database db.Backend) {
	fill(b, database, 1000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := database.Get(db.ColStatements, []byte("missing-key")); err != nil {
				b.Errorf("Get failed: %v", err)
				return
			}
		}
	})
}

// Benchmark for a full column scan as done when the store is loaded
func benchmarkIterate(b *testing.B, database db.Backend) {
	fill(b, database, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		count := 0
		err := database.Iterate(db.ColStatements, func(key, value []byte) bool {
			count++
			return true
		})
		if err != nil {
			b.Fatalf("Iterate failed: %v", err)
		}
	}
}

// Mixed read/write workload, 80% reads
func benchmarkMixedUsage(b *testing.B, database db.Backend) {
	const numKeys = 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := benchKey(r.Intn(numKeys))
			var err error
			switch op := r.Intn(10); {
			case op < 8:
				_, err = database.Get(db.ColStatements, key)
			case op < 9:
				err = database.Commit([]db.Op{db.Put(db.ColStatements, key, []byte("updated"))})
			default:
				err = database.Commit([]db.Op{db.Delete(db.ColStatements, key)})
			}
			if err != nil {
				b.Errorf("Operation failed: %v", err)
				return
			}
		}
	})
}
