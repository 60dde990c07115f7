package level

import (
	"testing"

	"github.com/ValentinKolb/dStmt/lib/db"
	dbtesting "github.com/ValentinKolb/dStmt/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunBackendTests(t, "LevelDB(memory)", OpenMemory)

	dbtesting.RunBackendTests(t, "LevelDB(disk)", func() (db.Backend, error) {
		return Open(t.TempDir())
	})

	dir := t.TempDir()
	dbtesting.RunReopenTest(t, "LevelDB", func() (db.Backend, error) {
		return Open(dir)
	})
}

func TestCompact(t *testing.T) {
	backend, err := OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open leveldb: %v", err)
	}
	defer backend.Close()

	ops := []db.Op{db.Put(db.ColStatements, []byte("a"), []byte("1"))}
	if err := backend.Commit(ops); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := backend.Commit([]db.Op{db.Delete(db.ColStatements, []byte("a"))}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := backend.(db.Compactor).Compact(); err != nil {
		t.Errorf("Compact failed: %v", err)
	}
	if value, _ := backend.Get(db.ColStatements, []byte("a")); value != nil {
		t.Errorf("Deleted key must stay deleted after compaction")
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunBackendBenchmarks(b, "LevelDB", func() (db.Backend, error) {
		return Open(b.TempDir())
	})
}
