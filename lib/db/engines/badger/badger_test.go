package badger

import (
	"testing"

	"github.com/ValentinKolb/dStmt/lib/db"
	dbtesting "github.com/ValentinKolb/dStmt/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunBackendTests(t, "Badger(memory)", OpenMemory)

	dbtesting.RunBackendTests(t, "Badger(disk)", func() (db.Backend, error) {
		return Open(t.TempDir())
	})

	dir := t.TempDir()
	dbtesting.RunReopenTest(t, "Badger", func() (db.Backend, error) {
		return Open(dir)
	})
}

func TestValueLogGC(t *testing.T) {
	backend, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}
	defer backend.Close()

	if err := backend.(db.Compactor).Compact(); err != nil {
		t.Errorf("Value log GC on an empty database should succeed, got %v", err)
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunBackendBenchmarks(b, "Badger", OpenMemory)
}
